// internal/service/metering/metering_service.go
package metering

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"modelmart-service/internal/domain/model"
	"modelmart-service/internal/domain/usage"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// UsageStore appends metered events to the usage ledger.
type UsageStore interface {
	Insert(ctx context.Context, ev *usage.UsageEvent) error
}

// EarningsStore credits model owners with traceable, idempotent credits.
type EarningsStore interface {
	Credit(ctx context.Context, ownerID int64, amount float64, source usage.CreditSource, sourceRef string) (bool, error)
}

// ModelStore resolves the model owner for revenue share crediting.
type ModelStore interface {
	FindByID(ctx context.Context, id int64) (*model.Model, error)
}

// Rates are the platform-wide cost constants. A real deployment may
// parameterize these per plan; here they are configuration input.
type Rates struct {
	PerThousandTokens float64
	PerSecond         float64
	RevenueShare      float64
}

// Service computes a cost for every invocation attempt, appends it to the
// usage ledger, and credits the owner's share on success.
type Service struct {
	usageRepo    UsageStore
	earningsRepo EarningsStore
	modelRepo    ModelStore
	rates        Rates
	logger       *zap.Logger
}

func NewService(
	usageRepo UsageStore,
	earningsRepo EarningsStore,
	modelRepo ModelStore,
	rates Rates,
	logger *zap.Logger,
) *Service {
	return &Service{
		usageRepo:    usageRepo,
		earningsRepo: earningsRepo,
		modelRepo:    modelRepo,
		rates:        rates,
		logger:       logger,
	}
}

// RecordUsage appends one usage event for an invocation attempt, success or
// failure. Failed invocations still record their partial input-only quantity
// but never credit earnings.
func (s *Service) RecordUsage(ctx context.Context, in usage.RecordUsageInput) (*usage.UsageEvent, error) {
	if in.Quantity < 0 {
		in.Quantity = 0
	}
	if in.LatencyMs < 0 {
		in.LatencyMs = 0
	}

	ev := &usage.UsageEvent{
		EventID:    ulid.Make().String(),
		CallerID:   in.CallerID,
		ModelID:    in.ModelID,
		Quantity:   in.Quantity,
		LatencyMs:  in.LatencyMs,
		Cost:       ComputeCost(in.Quantity, in.LatencyMs, s.rates),
		Success:    in.Success,
		OccurredAt: time.Now().UTC(),
	}
	if in.ErrorKind != "" {
		ev.ErrorKind = sql.NullString{String: in.ErrorKind, Valid: true}
	}

	if err := s.usageRepo.Insert(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to append usage event: %w", err)
	}

	if ev.Success {
		if err := s.creditOwner(ctx, ev); err != nil {
			// The event is already on the ledger; the credit is keyed by the
			// event id, so a retry cannot double-credit.
			s.logger.Error("failed to credit owner earnings",
				zap.String("event_id", ev.EventID),
				zap.Int64("model_id", ev.ModelID),
				zap.Error(err),
			)
			return ev, fmt.Errorf("usage recorded but earnings credit failed: %w", err)
		}
	}

	s.logger.Info("usage recorded",
		zap.String("event_id", ev.EventID),
		zap.Int64("caller_id", ev.CallerID),
		zap.Int64("model_id", ev.ModelID),
		zap.Int64("quantity", ev.Quantity),
		zap.Int64("latency_ms", ev.LatencyMs),
		zap.Float64("cost", ev.Cost),
		zap.Bool("success", ev.Success),
	)

	return ev, nil
}

func (s *Service) creditOwner(ctx context.Context, ev *usage.UsageEvent) error {
	m, err := s.modelRepo.FindByID(ctx, ev.ModelID)
	if err != nil {
		return fmt.Errorf("failed to resolve model owner: %w", err)
	}

	share := Round5(ev.Cost * s.rates.RevenueShare)
	credited, err := s.earningsRepo.Credit(ctx, m.OwnerID, share, usage.CreditSourceUsageEvent, ev.EventID)
	if err != nil {
		return err
	}
	if !credited {
		s.logger.Warn("earnings credit was already recorded for event",
			zap.String("event_id", ev.EventID),
			zap.Int64("owner_id", m.OwnerID),
		)
	}

	return nil
}

// ComputeCost prices an invocation: tokens at the per-thousand rate plus
// wall-clock time at the per-second rate, rounded to 5 decimal places.
func ComputeCost(quantity, latencyMs int64, rates Rates) float64 {
	cost := float64(quantity)/1000*rates.PerThousandTokens +
		float64(latencyMs)/1000*rates.PerSecond
	return Round5(cost)
}

// Round5 rounds half away from zero to 5 decimal places.
func Round5(v float64) float64 {
	if v < 0 {
		return -math.Floor(-v*1e5+0.5) / 1e5
	}
	return math.Floor(v*1e5+0.5) / 1e5
}
