package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subletx/subletx/internal/redisclient"
)

// RedisRateLimiter shares the fixed window across replicas; it guards the
// public auth endpoints against credential stuffing.
type RedisRateLimiter struct {
	client *redisclient.Client
	limit  int64
	window time.Duration
	prefix string
}

func NewRedisRateLimiter(client *redisclient.Client, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: prefix,
	}
}

func (rl *RedisRateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = clientIP(c)
		}

		n, err := rl.client.Hit(c.Request.Context(), rl.prefix+":"+key, rl.window)

		if err != nil {
			// redis down must not take auth down with it
			slog.Default().WarnContext(c.Request.Context(), "rate_limiter_degraded", "err", err)
			c.Next()
			return
		}

		if n > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "Too many requests. Please try again shortly.",
				},
			})
			return
		}

		c.Next()
	}
}
