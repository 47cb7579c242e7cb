// internal/handlers/catalog/catalog_handler.go
package catalog

import (
	"net/http"
	"strconv"

	"modelmart-service/internal/domain/plan"
	"modelmart-service/internal/middleware"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/pkg/response"
	"modelmart-service/internal/service/catalog"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalogService *catalog.Service
}

func NewCatalogHandler(catalogService *catalog.Service) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
	}
}

// ========== Models ==========

// ListModels retrieves the models open for invocation
func (h *CatalogHandler) ListModels(c *gin.Context) {
	models, err := h.catalogService.ListModels(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list models", err)
		return
	}

	response.Success(c, http.StatusOK, "models retrieved", models)
}

// GetModel retrieves a model by ID
func (h *CatalogHandler) GetModel(c *gin.Context) {
	modelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid model ID", err)
		return
	}

	m, err := h.catalogService.GetModel(c.Request.Context(), modelID)
	if err != nil {
		response.NotFound(c, "model not found")
		return
	}

	response.Success(c, http.StatusOK, "model retrieved", m)
}

// ========== Plans ==========

// ListPublicPlans retrieves active, publicly purchasable plans (?model_id=1)
func (h *CatalogHandler) ListPublicPlans(c *gin.Context) {
	var modelID *int64
	if raw := c.Query("model_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid model_id", err)
			return
		}
		modelID = &id
	}

	plans, err := h.catalogService.ListPublicPlans(c.Request.Context(), modelID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", plans)
}

// GetPlan retrieves a plan by ID
func (h *CatalogHandler) GetPlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	p, err := h.catalogService.GetPlan(c.Request.Context(), planID)
	if err != nil {
		response.NotFound(c, "plan not found")
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", p)
}

// CreatePlan publishes a new plan version for a model the caller owns
func (h *CatalogHandler) CreatePlan(c *gin.Context) {
	ownerID := middleware.MustGetIdentityID(c)

	var req plan.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	p, err := h.catalogService.CreatePlan(c.Request.Context(), ownerID, &req)
	switch {
	case err == nil:
		response.Success(c, http.StatusCreated, "plan published", p)
	case xerrors.Is(err, xerrors.ErrForbidden):
		response.Forbidden(c, "caller does not own this model")
	case xerrors.Is(err, xerrors.ErrInvalidUnit), xerrors.Is(err, xerrors.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "invalid plan", err)
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "model not found")
	default:
		response.Error(c, http.StatusInternalServerError, "failed to publish plan", err)
	}
}

// RetirePlan retires a plan version the caller owns
func (h *CatalogHandler) RetirePlan(c *gin.Context) {
	ownerID := middleware.MustGetIdentityID(c)

	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	err = h.catalogService.RetirePlan(c.Request.Context(), ownerID, planID)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, "plan retired", nil)
	case xerrors.Is(err, xerrors.ErrForbidden):
		response.Forbidden(c, "caller does not own this model")
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "plan not found")
	default:
		response.Error(c, http.StatusInternalServerError, "failed to retire plan", err)
	}
}
