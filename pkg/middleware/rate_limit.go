package middleware

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/metrics"
)

// per-key limiter store (simple in-memory token-bucket)
var limiterStore sync.Map // map[string]*rate.Limiter

func getLimiter(key string, rps float64, burst int) *rate.Limiter {
	v, ok := limiterStore.Load(key)
	if ok {
		return v.(*rate.Limiter)
	}
	lim, _ := limiterStore.LoadOrStore(key, rate.NewLimiter(rate.Limit(rps), burst))
	return lim.(*rate.Limiter)
}

// limiterKey prefers the ZGW client_id, then the OIDC subject, then the client IP.
func limiterKey(c *gin.Context) string {
	if id := ClientID(c); id != "" {
		return "client:" + id
	}
	if sub := ClaimString(c, "sub"); sub != "" {
		return "sub:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func tooManyRequests(c *gin.Context, retryAfter int) {
	c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"code":   "throttled",
		"title":  "Verzoek is afgeremd.",
		"status": http.StatusTooManyRequests,
	})
}

// RateLimitMiddleware enforces a token bucket per key.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := getLimiter(limiterKey(c), rps, burst)
		if !lim.Allow() {
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			tooManyRequests(c, 1)
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
