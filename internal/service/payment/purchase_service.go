// internal/service/payment/purchase_service.go
package paymentsvc

import (
	"context"
	"fmt"

	"modelmart-service/internal/domain/payment"
	"modelmart-service/internal/domain/plan"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/service/pricing"

	"go.uber.org/zap"
)

// PlanStore resolves the plan being purchased.
type PlanStore interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
}

// PayLinker creates hosted checkout links.
type PayLinker interface {
	CreatePayLink(ctx context.Context, amount float64, currency, metadata string) (*payment.PayLink, error)
}

// PurchaseService quotes a plan at the requested unit and hands the caller a
// pay link. The actual grant happens later, when the settlement webhook
// arrives.
type PurchaseService struct {
	planRepo PlanStore
	payLinks PayLinker
	logger   *zap.Logger
}

func NewPurchaseService(planRepo PlanStore, payLinks PayLinker, logger *zap.Logger) *PurchaseService {
	return &PurchaseService{
		planRepo: planRepo,
		payLinks: payLinks,
		logger:   logger,
	}
}

// CreatePurchaseLink quotes the plan for the requested unit and creates a pay
// link whose metadata encodes (model, plan, caller, unit) for reconciliation.
// The unit travels with the payment so the settled grant can never be longer
// than the period the quote priced.
func (s *PurchaseService) CreatePurchaseLink(ctx context.Context, callerID int64, req *payment.PurchaseRequest) (*payment.PayLink, error) {
	unit := plan.BillingUnit(req.Unit)
	if !plan.ValidUnit(unit) {
		return nil, fmt.Errorf("%w: %q", xerrors.ErrInvalidUnit, req.Unit)
	}

	p, err := s.planRepo.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("plan not found: %w", err)
	}

	if p.ModelID != req.ModelID {
		return nil, fmt.Errorf("%w: plan does not belong to requested model", xerrors.ErrInvalidInput)
	}
	if p.Status != plan.StatusActive || !p.IsPublic {
		return nil, fmt.Errorf("%w: plan is not available for purchase", xerrors.ErrInvalidInput)
	}

	quote, err := pricing.ComputeQuote(p.BasePrice, unit)
	if err != nil {
		return nil, err
	}

	metadata := payment.BuildMetadataKey(p.ModelID, p.ID, callerID, unit)
	link, err := s.payLinks.CreatePayLink(ctx, quote.Price, p.Currency, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create pay link: %w", err)
	}

	s.logger.Info("pay link created",
		zap.Int64("caller_id", callerID),
		zap.Int64("model_id", p.ModelID),
		zap.Int64("plan_id", p.ID),
		zap.String("unit", string(unit)),
		zap.Float64("amount", quote.Price),
		zap.String("paylink_id", link.ID),
	)

	return link, nil
}
