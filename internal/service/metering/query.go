// internal/service/metering/query.go
package metering

import (
	"context"
	"fmt"
	"time"

	"modelmart-service/internal/domain/usage"
	xerrors "modelmart-service/internal/pkg/errors"
)

// SummaryStore aggregates the usage ledger for the query surface.
type SummaryStore interface {
	Summary(ctx context.Context, callerID int64, windowStart, windowEnd time.Time) (*usage.UsageSummary, error)
}

// EarningsReader exposes an owner's ledger and credit history.
type EarningsReader interface {
	GetLedger(ctx context.Context, ownerID int64) (*usage.EarningsLedger, error)
	ListCredits(ctx context.Context, ownerID int64, limit int) ([]usage.EarningsCredit, error)
}

// QueryService serves the read side of metering: usage summaries for callers
// and earnings statements for model owners.
type QueryService struct {
	summaryRepo  SummaryStore
	earningsRepo EarningsReader
}

func NewQueryService(summaryRepo SummaryStore, earningsRepo EarningsReader) *QueryService {
	return &QueryService{
		summaryRepo:  summaryRepo,
		earningsRepo: earningsRepo,
	}
}

// GetUsageSummary aggregates the caller's ledger over the trailing window.
func (s *QueryService) GetUsageSummary(ctx context.Context, callerID int64, window usage.SummaryWindow) (*usage.UsageSummary, error) {
	now := time.Now().UTC()

	var start time.Time
	switch window {
	case usage.WindowDay:
		start = now.AddDate(0, 0, -1)
	case usage.WindowWeek:
		start = now.AddDate(0, 0, -7)
	case usage.WindowMonth, "":
		start = now.AddDate(0, -1, 0)
	default:
		return nil, fmt.Errorf("%w: unknown summary window %q", xerrors.ErrInvalidInput, window)
	}

	summary, err := s.summaryRepo.Summary(ctx, callerID, start, now)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}

	return summary, nil
}

// EarningsStatement bundles an owner's running totals with recent credits.
type EarningsStatement struct {
	Ledger  *usage.EarningsLedger  `json:"ledger"`
	Credits []usage.EarningsCredit `json:"recent_credits"`
}

// GetEarnings returns the owner's ledger totals and recent credit history.
// An owner with no credited earnings yet gets a zeroed ledger, not an error.
func (s *QueryService) GetEarnings(ctx context.Context, ownerID int64) (*EarningsStatement, error) {
	ledger, err := s.earningsRepo.GetLedger(ctx, ownerID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		ledger = &usage.EarningsLedger{OwnerID: ownerID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load earnings ledger: %w", err)
	}

	credits, err := s.earningsRepo.ListCredits(ctx, ownerID, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings credits: %w", err)
	}

	return &EarningsStatement{Ledger: ledger, Credits: credits}, nil
}
