package autorisaties

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

// RegisterAdminRoutes mounts applicatie management on an admin group.
func RegisterAdminRoutes(g *gin.RouterGroup, svc *Service, types TypeSource) {
	g.GET("/applicaties", func(c *gin.Context) {
		apps, err := svc.Store().ListApplicaties(c.Request.Context())
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, apps)
	})

	g.POST("/applicaties", func(c *gin.Context) {
		var req struct {
			Applicatie
			Secret string `json:"secret"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.Respond(c, apierrors.NonField("parse_error", err.Error()))
			return
		}
		app := req.Applicatie
		if err := svc.CreateApplicatie(c.Request.Context(), &app, req.Secret); err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, app)
	})

	g.PUT("/autorisatiespecs", func(c *gin.Context) {
		var spec AutorisatieSpec
		if err := c.ShouldBindJSON(&spec); err != nil {
			apierrors.Respond(c, apierrors.NonField("parse_error", err.Error()))
			return
		}
		if spec.ApplicatieUUID == "" || spec.Component == "" {
			apierrors.Respond(c, apierrors.NonField("required", "applicatie en component zijn vereist."))
			return
		}
		if err := svc.Store().SaveSpec(c.Request.Context(), &spec); err != nil {
			apierrors.Respond(c, err)
			return
		}
		if err := svc.Sync(c.Request.Context(), types); err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, spec)
	})

	g.POST("/autorisaties/sync", func(c *gin.Context) {
		if err := svc.Sync(c.Request.Context(), types); err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
