package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/metrics"
)

// RedisRateLimitMiddleware is a fixed-window limiter shared by all instances.
// The first INCR of a window sets its expiry; allowed = floor(rps*window)+burst.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	windowSeconds := int(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	allowedPerWindow := int(rps*float64(windowSeconds)) + burst
	return func(c *gin.Context) {
		key := "openzaak:rl:" + limiterKey(c)
		ctx := c.Request.Context()

		cnt, err := client.Incr(ctx, key).Result()
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		if cnt == 1 {
			_ = client.Expire(ctx, key, time.Duration(windowSeconds)*time.Second).Err()
		}
		if int(cnt) > allowedPerWindow {
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			tooManyRequests(c, windowSeconds)
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
