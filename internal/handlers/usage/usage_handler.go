// internal/handlers/usage/usage_handler.go
package usage

import (
	"net/http"

	"modelmart-service/internal/domain/usage"
	"modelmart-service/internal/middleware"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/pkg/response"
	"modelmart-service/internal/service/metering"

	"github.com/gin-gonic/gin"
)

type UsageHandler struct {
	queryService *metering.QueryService
}

func NewUsageHandler(queryService *metering.QueryService) *UsageHandler {
	return &UsageHandler{
		queryService: queryService,
	}
}

// GetSummary aggregates the caller's usage over a trailing window (?window=day|week|month)
func (h *UsageHandler) GetSummary(c *gin.Context) {
	callerID := middleware.MustGetIdentityID(c)
	window := usage.SummaryWindow(c.DefaultQuery("window", "month"))

	summary, err := h.queryService.GetUsageSummary(c.Request.Context(), callerID, window)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, "invalid summary window", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to summarize usage", err)
		return
	}

	response.Success(c, http.StatusOK, "usage summary computed", summary)
}

// GetEarnings returns the caller's owner earnings ledger and recent credits
func (h *UsageHandler) GetEarnings(c *gin.Context) {
	ownerID := middleware.MustGetIdentityID(c)

	statement, err := h.queryService.GetEarnings(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load earnings", err)
		return
	}

	response.Success(c, http.StatusOK, "earnings retrieved", statement)
}
