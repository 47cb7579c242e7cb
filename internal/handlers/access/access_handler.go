// internal/handlers/access/access_handler.go
package access

import (
	"net/http"
	"strconv"

	"modelmart-service/internal/domain/entitlement"
	"modelmart-service/internal/middleware"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/pkg/response"
	"modelmart-service/internal/service/access"

	"github.com/gin-gonic/gin"
)

type AccessHandler struct {
	accessService *access.Service
}

func NewAccessHandler(accessService *access.Service) *AccessHandler {
	return &AccessHandler{
		accessService: accessService,
	}
}

// GetAccessReport answers whether the caller may invoke the model right now,
// with the quota snapshot attached when they can.
func (h *AccessHandler) GetAccessReport(c *gin.Context) {
	callerID := middleware.MustGetIdentityID(c)

	modelID, err := strconv.ParseInt(c.Param("model_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid model ID", err)
		return
	}

	report, err := h.accessService.GetAccessReport(c.Request.Context(), callerID, modelID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotEntitled) {
			response.PaymentRequired(c, "no active subscription for this model", nil)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to compute access report", err)
		return
	}

	response.Success(c, http.StatusOK, "access report computed", report)
}

// ListSubscriptions retrieves the caller's subscriptions with filters
func (h *AccessHandler) ListSubscriptions(c *gin.Context) {
	callerID := middleware.MustGetIdentityID(c)

	var filters entitlement.SubscriptionListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.accessService.ListSubscriptions(c.Request.Context(), callerID, &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list subscriptions", err)
		return
	}

	response.Success(c, http.StatusOK, "subscriptions retrieved", result)
}

// ListActiveSubscriptions retrieves the caller's currently-active grants
func (h *AccessHandler) ListActiveSubscriptions(c *gin.Context) {
	callerID := middleware.MustGetIdentityID(c)

	subs, err := h.accessService.ListActiveSubscriptions(c.Request.Context(), callerID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list active subscriptions", err)
		return
	}

	response.Success(c, http.StatusOK, "active subscriptions retrieved", subs)
}
