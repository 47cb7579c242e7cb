// internal/middleware/ratelimit_middleware.go
package middleware

import (
	"net/http"
	"time"

	"modelmart-service/internal/pkg/ratelimit"
	"modelmart-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware throttles an endpoint per caller using a fixed window.
// MUST be used after Auth() middleware. A Redis failure lets the request
// through, the billing quotas downstream are the hard limit.
func RateLimitMiddleware(limiter *ratelimit.Limiter, endpoint string, maxRequests int64, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identityID, ok := GetIdentityID(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "authentication required", nil)
			return
		}

		allowed, err := limiter.Check(c.Request.Context(), identityID, endpoint, maxRequests, window)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, "too many requests", nil, map[string]interface{}{
				"retry_after_seconds": int(window.Seconds()),
			})
			return
		}

		c.Next()
	}
}
