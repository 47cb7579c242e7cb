// internal/service/catalog/catalog_service.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"modelmart-service/internal/domain/model"
	"modelmart-service/internal/domain/plan"
	xerrors "modelmart-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// PlanStore is the plan persistence surface.
type PlanStore interface {
	Create(ctx context.Context, p *plan.Plan) error
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
	NextVersion(ctx context.Context, planCode string) (int, error)
	Retire(ctx context.Context, id int64) error
	List(ctx context.Context, filters *plan.PlanListFilters) ([]plan.Plan, error)
}

// ModelStore resolves models for ownership checks and listings.
type ModelStore interface {
	FindByID(ctx context.Context, id int64) (*model.Model, error)
	FindBySlug(ctx context.Context, slug string) (*model.Model, error)
	ListActive(ctx context.Context) ([]model.Model, error)
}

// Service manages the purchasable catalog: models and their plan versions.
// Plans referenced by money are immutable, so a pricing change is always a
// new version of the same plan code with the old version retired.
type Service struct {
	planRepo  PlanStore
	modelRepo ModelStore
	logger    *zap.Logger
}

func NewService(planRepo PlanStore, modelRepo ModelStore, logger *zap.Logger) *Service {
	return &Service{
		planRepo:  planRepo,
		modelRepo: modelRepo,
		logger:    logger,
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = slugPattern.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// CreatePlan publishes a new plan version for a model the caller owns.
func (s *Service) CreatePlan(ctx context.Context, ownerID int64, req *plan.CreatePlanRequest) (*plan.Plan, error) {
	if !plan.ValidUnit(req.Unit) {
		return nil, fmt.Errorf("%w: %q", xerrors.ErrInvalidUnit, req.Unit)
	}
	if req.BasePrice <= 0 {
		return nil, fmt.Errorf("%w: base price must be positive", xerrors.ErrInvalidInput)
	}

	m, err := s.modelRepo.FindByID(ctx, req.ModelID)
	if err != nil {
		return nil, fmt.Errorf("model not found: %w", err)
	}
	if m.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: caller does not own model %d", xerrors.ErrForbidden, m.ID)
	}

	planCode := fmt.Sprintf("%s-%s", m.Slug, slugify(req.Name))
	version, err := s.planRepo.NextVersion(ctx, planCode)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	p := &plan.Plan{
		PlanCode:  planCode,
		ModelID:   m.ID,
		Version:   version,
		Name:      req.Name,
		BasePrice: req.BasePrice,
		Currency:  currency,
		Unit:      req.Unit,
		Status:    plan.StatusActive,
		IsPublic:  req.IsPublic,
	}
	if req.Description != "" {
		p.Description = sql.NullString{String: req.Description, Valid: true}
	}
	if req.MinuteLimit != nil {
		p.MinuteLimit = sql.NullInt32{Int32: *req.MinuteLimit, Valid: true}
	}
	if req.MonthLimit != nil {
		p.MonthLimit = sql.NullInt32{Int32: *req.MonthLimit, Valid: true}
	}

	if err := s.planRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("plan published",
		zap.Int64("owner_id", ownerID),
		zap.Int64("model_id", m.ID),
		zap.String("plan_code", planCode),
		zap.Int("version", version),
		zap.Float64("base_price", p.BasePrice),
	)

	return p, nil
}

// RetirePlan retires a plan version the caller owns. Subscriptions already
// sold against it keep their terms.
func (s *Service) RetirePlan(ctx context.Context, ownerID, planID int64) error {
	p, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("plan not found: %w", err)
	}

	m, err := s.modelRepo.FindByID(ctx, p.ModelID)
	if err != nil {
		return fmt.Errorf("model not found: %w", err)
	}
	if m.OwnerID != ownerID {
		return fmt.Errorf("%w: caller does not own model %d", xerrors.ErrForbidden, m.ID)
	}

	return s.planRepo.Retire(ctx, planID)
}

// GetPlan retrieves a plan by ID
func (s *Service) GetPlan(ctx context.Context, planID int64) (*plan.Plan, error) {
	return s.planRepo.FindByID(ctx, planID)
}

// ListPublicPlans lists the active, publicly purchasable plans.
func (s *Service) ListPublicPlans(ctx context.Context, modelID *int64) ([]plan.Plan, error) {
	status := plan.StatusActive
	return s.planRepo.List(ctx, &plan.PlanListFilters{
		ModelID:    modelID,
		Status:     &status,
		PublicOnly: true,
	})
}

// ListPlans lists plans with arbitrary filters, for owner and operator views.
func (s *Service) ListPlans(ctx context.Context, filters *plan.PlanListFilters) ([]plan.Plan, error) {
	return s.planRepo.List(ctx, filters)
}

// GetModel retrieves a model by ID
func (s *Service) GetModel(ctx context.Context, id int64) (*model.Model, error) {
	return s.modelRepo.FindByID(ctx, id)
}

// GetModelBySlug retrieves a model by its public slug
func (s *Service) GetModelBySlug(ctx context.Context, slug string) (*model.Model, error) {
	return s.modelRepo.FindBySlug(ctx, slug)
}

// ListModels lists the models open for invocation
func (s *Service) ListModels(ctx context.Context) ([]model.Model, error) {
	return s.modelRepo.ListActive(ctx)
}
