// internal/handlers/inference/inference_handler.go
package inference

import (
	"net/http"
	"strconv"

	"modelmart-service/internal/events"
	"modelmart-service/internal/middleware"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/pkg/response"
	"modelmart-service/internal/service/inference"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InferenceHandler struct {
	invocationService *inference.InvocationService
	hub               *events.Hub
	logger            *zap.Logger
}

func NewInferenceHandler(invocationService *inference.InvocationService, hub *events.Hub, logger *zap.Logger) *InferenceHandler {
	return &InferenceHandler{
		invocationService: invocationService,
		hub:               hub,
		logger:            logger,
	}
}

type invokeRequest struct {
	Input  interface{}            `json:"input" binding:"required"`
	Params map[string]interface{} `json:"params"`
}

// Invoke runs one metered invocation against a model
func (h *InferenceHandler) Invoke(c *gin.Context) {
	callerID := middleware.MustGetIdentityID(c)

	modelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid model ID", err)
		return
	}

	var req invokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	outcome, err := h.invocationService.Invoke(c.Request.Context(), inference.InvokeInput{
		CallerID: callerID,
		ModelID:  modelID,
		Input:    req.Input,
		Params:   req.Params,
	})

	switch {
	case err == nil:
		response.Success(c, http.StatusOK, "invocation completed", outcome)
	case xerrors.Is(err, xerrors.ErrQuotaExceeded):
		h.hub.PublishQuotaDenial(callerID, modelID, outcome.Quota.RetryAfter)
		response.QuotaExceeded(c, "quota exceeded", outcome.Quota)
	case xerrors.Is(err, xerrors.ErrNotEntitled):
		response.PaymentRequired(c, "no active subscription for this model", nil)
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "model not found")
	case xerrors.Is(err, xerrors.ErrProviderError):
		response.Error(c, http.StatusBadGateway, "model invocation failed", err)
	default:
		h.logger.Error("invocation failed", zap.Int64("model_id", modelID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "invocation failed", err)
	}
}
