package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

const claimsKey = "claims"

// AuthMiddleware verifies Bearer tokens with ver and stores the claims on the context.
// The same middleware serves ZGW client tokens and the OIDC tokens of the admin API.
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			apierrors.Respond(c, fmt.Errorf("%w: missing Authorization header", apierrors.ErrUnauthorized))
			return
		}
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			apierrors.Respond(c, fmt.Errorf("%w: invalid Authorization header", apierrors.ErrUnauthorized))
			return
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			apierrors.Respond(c, fmt.Errorf("%w: %v", apierrors.ErrUnauthorized, err))
			return
		}

		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			apierrors.Respond(c, fmt.Errorf("%w: failed to parse claims", apierrors.ErrUnauthorized))
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims returns the verified claims, if any.
func Claims(c *gin.Context) (map[string]interface{}, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	cm, ok := v.(map[string]interface{})
	return cm, ok
}

// ClaimString returns a string claim or "".
func ClaimString(c *gin.Context, key string) string {
	cm, ok := Claims(c)
	if !ok {
		return ""
	}
	s, _ := cm[key].(string)
	return s
}

// ClientID returns the client_id of a ZGW token.
func ClientID(c *gin.Context) string { return ClaimString(c, "client_id") }

// RequireGroup rejects requests whose "groups" claim lacks group. Must run after AuthMiddleware.
func RequireGroup(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cm, _ := Claims(c)
		if hasGroup(cm["groups"], group) {
			c.Next()
			return
		}
		apierrors.Respond(c, fmt.Errorf("%w: group %s required", apierrors.ErrPermissionDenied, group))
	}
}

func hasGroup(raw interface{}, group string) bool {
	switch gs := raw.(type) {
	case []interface{}:
		for _, g := range gs {
			if s, ok := g.(string); ok && strings.TrimPrefix(s, "/") == group {
				return true
			}
		}
	case []string:
		for _, s := range gs {
			if strings.TrimPrefix(s, "/") == group {
				return true
			}
		}
	}
	return false
}
