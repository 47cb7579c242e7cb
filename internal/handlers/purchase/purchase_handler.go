// internal/handlers/purchase/purchase_handler.go
package purchase

import (
	"net/http"

	"modelmart-service/internal/domain/payment"
	"modelmart-service/internal/middleware"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/pkg/response"
	paymentsvc "modelmart-service/internal/service/payment"

	"github.com/gin-gonic/gin"
)

type PurchaseHandler struct {
	purchaseService *paymentsvc.PurchaseService
}

func NewPurchaseHandler(purchaseService *paymentsvc.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
	}
}

// CreatePurchaseLink quotes a plan at the requested unit and returns a hosted
// pay link. The subscription itself is granted later by the settlement webhook.
func (h *PurchaseHandler) CreatePurchaseLink(c *gin.Context) {
	callerID := middleware.MustGetIdentityID(c)

	var req payment.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	link, err := h.purchaseService.CreatePurchaseLink(c.Request.Context(), callerID, &req)
	switch {
	case err == nil:
		response.Success(c, http.StatusCreated, "pay link created", link)
	case xerrors.Is(err, xerrors.ErrInvalidUnit), xerrors.Is(err, xerrors.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "invalid purchase request", err)
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "plan not found")
	default:
		response.Error(c, http.StatusBadGateway, "failed to create pay link", err)
	}
}
