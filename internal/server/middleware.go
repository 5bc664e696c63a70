package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
)

// cors sets permissive CORS headers and answers preflight requests.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, Accept-Crs, Content-Crs")
		h.Set("Access-Control-Expose-Headers", "Content-Length, Location")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/ready":
			entry.Debug("request")
		default:
			entry.Info("request")
		}
	}
}
