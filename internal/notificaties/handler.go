package notificaties

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

// RegisterAdminRoutes mounts the failed notification endpoints on an admin group.
func RegisterAdminRoutes(g *gin.RouterGroup, n *Notifier) {
	g.GET("/failed-notifications", func(c *gin.Context) {
		list, err := n.Failed().List(c.Request.Context(), c.Query("pending") == "true")
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	g.GET("/failed-notifications/:id", func(c *gin.Context) {
		f, err := n.Failed().Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			apierrors.Respond(c, apierrors.ErrNotFound)
			return
		}
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, f)
	})

	g.POST("/failed-notifications/resend", func(c *gin.Context) {
		var req struct {
			IDs []string `json:"ids"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				apierrors.Respond(c, apierrors.NonField("parse_error", err.Error()))
				return
			}
		}
		res, err := n.Resend(c.Request.Context(), req.IDs)
		if errors.Is(err, ErrNotFound) {
			apierrors.Respond(c, apierrors.ErrNotFound)
			return
		}
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}
