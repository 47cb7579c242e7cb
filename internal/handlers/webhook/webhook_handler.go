// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"net/http"

	"modelmart-service/internal/domain/payment"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/pkg/lock"
	"modelmart-service/internal/pkg/response"
	"modelmart-service/internal/service/reconcile"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	reconcileService *reconcile.Service
	logger           *zap.Logger
}

func NewWebhookHandler(reconcileService *reconcile.Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconcileService: reconcileService,
		logger:           logger,
	}
}

// HandlePaymentEvent consumes one payment-provider webhook delivery.
// Permanent failures (malformed metadata, conflicts) are acknowledged with 2xx
// so the provider stops redelivering; they are already on the audit trail.
// Transient failures return 5xx to request redelivery.
func (h *WebhookHandler) HandlePaymentEvent(c *gin.Context) {
	var ev payment.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid webhook payload", err)
		return
	}

	result, err := h.reconcileService.HandleEvent(c.Request.Context(), ev)

	switch {
	case err == nil:
		response.Success(c, http.StatusOK, "event processed", result)
	case xerrors.Is(err, xerrors.ErrMalformedMetadata), xerrors.Is(err, xerrors.ErrInvalidInput):
		// Redelivery cannot fix a malformed event; ack it off the queue.
		response.Success(c, http.StatusOK, "event rejected as malformed", gin.H{
			"outcome": payment.OutcomeMalformed,
			"error":   err.Error(),
		})
	case xerrors.Is(err, xerrors.ErrConflictingEntitlement):
		response.Success(c, http.StatusOK, "event conflicts with existing entitlement", gin.H{
			"outcome": payment.OutcomeConflict,
			"error":   err.Error(),
		})
	case xerrors.Is(err, lock.ErrLockHeld):
		response.Error(c, http.StatusServiceUnavailable, "settlement is being processed, retry later", err)
	default:
		h.logger.Error("webhook reconciliation failed",
			zap.String("settlement_ref", ev.SettlementRef),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "failed to process event", err)
	}
}
