package middleware

import (
	"context"
	"fmt"
	"time"

	"codequest/internal/common/cache"
	"codequest/pkg/errors"
	"codequest/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimiter enforces fixed-window request counting backed by the cache.
type RateLimiter struct {
	cache cache.Cache
}

func NewRateLimiter(c cache.Cache) *RateLimiter {
	return &RateLimiter{cache: c}
}

// Allow increments the counter for key and rejects once max is exceeded
// within the window.
func (l *RateLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if l == nil || l.cache == nil || max <= 0 {
		return nil
	}
	count, err := l.cache.Incr(ctx, key)
	if err != nil {
		// Fail open so a cache outage does not block traffic.
		return nil
	}
	if count == 1 {
		_ = l.cache.Expire(ctx, key, window)
	}
	if count > int64(max) {
		return errors.New(errors.SubmitTooFrequently)
	}
	return nil
}

// RateLimitMiddleware enforces per-IP and per-user limits for a route.
func RateLimitMiddleware(limiter *RateLimiter, routeKey string, ipMax, userMax int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if ipMax > 0 {
			key := fmt.Sprintf("rate:ip:%s:%s", c.ClientIP(), routeKey)
			if err := limiter.Allow(c.Request.Context(), key, ipMax, window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		if userMax > 0 {
			if user, ok := CurrentUser(c); ok {
				key := fmt.Sprintf("rate:user:%s:%s", user.ID, routeKey)
				if err := limiter.Allow(c.Request.Context(), key, userMax, window); err != nil {
					response.AbortWithError(c, err)
					return
				}
			}
		}
		c.Next()
	}
}
