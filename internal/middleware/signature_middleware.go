// internal/middleware/signature_middleware.go
package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"modelmart-service/internal/pkg/response"
	"modelmart-service/internal/pkg/signature"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureMiddleware verifies the HMAC signature on inbound webhook payloads.
// The raw body is restored on the request so handlers can bind it normally.
func SignatureMiddleware(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "failed to read request body", err)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sig := c.GetHeader("X-Webhook-Signature")
		ts, err := strconv.ParseInt(c.GetHeader("X-Webhook-Timestamp"), 10, 64)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "missing or invalid signature timestamp", err)
			return
		}

		if err := signature.Verify(secret, body, sig, ts, time.Now()); err != nil {
			logger.Warn("rejected webhook with bad signature",
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
			response.Error(c, http.StatusUnauthorized, "invalid webhook signature", err)
			return
		}

		c.Next()
	}
}
