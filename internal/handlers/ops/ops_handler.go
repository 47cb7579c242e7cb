// internal/handlers/ops/ops_handler.go
package ops

import (
	"context"
	"net/http"
	"strconv"

	"modelmart-service/internal/domain/payment"
	"modelmart-service/internal/events"
	"modelmart-service/internal/middleware"
	"modelmart-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AuditLister reads the persisted reconciliation trail.
type AuditLister interface {
	ListRecent(ctx context.Context, limit int) ([]payment.AuditEvent, error)
}

type OpsHandler struct {
	hub       *events.Hub
	auditRepo AuditLister
	logger    *zap.Logger

	upgrader websocket.Upgrader
}

func NewOpsHandler(hub *events.Hub, auditRepo AuditLister, logger *zap.Logger) *OpsHandler {
	return &OpsHandler{
		hub:       hub,
		auditRepo: auditRepo,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades an operator dashboard to the live event stream
func (h *OpsHandler) HandleConnection(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.Serve(conn, identityID)
}

// ListAuditEvents retrieves the most recent reconciliation audit records
func (h *OpsHandler) ListAuditEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		limit = 100
	}

	evs, err := h.auditRepo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list audit events", err)
		return
	}

	response.Success(c, http.StatusOK, "audit events retrieved", evs)
}
