package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/middleware"
)

// Revoker invalidates an admin token before it expires.
type Revoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// RegisterAdminRoutes mounts the account endpoints on an authenticated admin group.
// revoker may be nil, in which case logout is not available.
func RegisterAdminRoutes(g *gin.RouterGroup, svc *Service, revoker Revoker) {
	g.GET("/me", func(c *gin.Context) {
		claims, _ := middleware.Claims(c)
		a, err := svc.UpsertFromClaims(c.Request.Context(), claims)
		if errors.Is(err, ErrNoSubject) {
			apierrors.Respond(c, fmt.Errorf("%w: %v", apierrors.ErrUnauthorized, err))
			return
		}
		if err != nil {
			logger.Errorf("account upsert error: %v", err)
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	})

	g.GET("/accounts", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context())
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	if revoker == nil {
		return
	}
	g.POST("/logout", func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if err := revoker.Revoke(c.Request.Context(), token, remaining(c)); err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// remaining is the lifetime left on the verified token, from its exp claim.
func remaining(c *gin.Context) time.Duration {
	claims, _ := middleware.Claims(c)
	exp, ok := claims["exp"].(float64)
	if !ok {
		return 0
	}
	return time.Until(time.Unix(int64(exp), 0))
}
