package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/mistapp/backend/internal/errors"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"github.com/mistapp/backend/internal/util"
	"go.uber.org/zap"
)

// WindowCounter counts hits in a fixed window. cache.RedisClient implements it.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisRateLimitMiddleware creates a distributed fixed-window rate limiter.
// Authenticated requests are keyed by user, anonymous ones by client IP.
// A nil counter disables limiting.
func RedisRateLimitMiddleware(counter WindowCounter, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || maxRequests <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:ip:%s", c.ClientIP())
		if userID, ok := c.Get(util.ContextUserIDKey); ok {
			key = fmt.Sprintf("rate_limit:user:%v", userID)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := counter.IncrWindow(ctx, key, window)
		if err != nil {
			// fail open
			logger.WarnWithFields("Rate limit check failed, allowing request", err, zap.String("key", key))
			c.Next()
			return
		}

		if count > int64(maxRequests) {
			logger.Log.Warn("Rate limit exceeded",
				logger.WithIP(c.ClientIP()),
				zap.String("key", key),
				zap.Int("max_requests", maxRequests),
				zap.Int64("current_requests", count),
			)
			metrics.Get().RateLimitExceededTotal.WithLabelValues(c.FullPath(), c.Request.Method).Inc()
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			util.RespondWithAPIError(c, apierrors.RateLimited("rate limit exceeded"))
			return
		}

		c.Next()
	}
}
