// internal/repository/postgres/usage_event_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"modelmart-service/internal/domain/usage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageEventRepository is the append-only usage ledger. Quota windows are
// computed by SQL aggregation over recent rows rather than in-memory counters,
// so correctness survives restarts and horizontal scaling.
type UsageEventRepository struct {
	db *pgxpool.Pool
}

func NewUsageEventRepository(db *pgxpool.Pool) *UsageEventRepository {
	return &UsageEventRepository{db: db}
}

// Insert appends one usage event. Events are immutable after this.
func (r *UsageEventRepository) Insert(ctx context.Context, ev *usage.UsageEvent) error {
	query := `
		INSERT INTO usage_events (
			event_id, caller_id, model_id, quantity, latency_ms,
			cost, success, error_kind, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		ev.EventID, ev.CallerID, ev.ModelID, ev.Quantity, ev.LatencyMs,
		ev.Cost, ev.Success, ev.ErrorKind, ev.OccurredAt,
	).Scan(&ev.ID, &ev.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert usage event: %w", err)
	}

	return nil
}

// WindowUsage sums quantities over the two quota windows as of now: the last
// 60 seconds and the current calendar month to date.
func (r *UsageEventRepository) WindowUsage(ctx context.Context, callerID, modelID int64, now time.Time) (*usage.WindowUsage, error) {
	query := `
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE occurred_at > $3::timestamptz - interval '60 seconds'), 0),
			COALESCE(SUM(quantity), 0)
		FROM usage_events
		WHERE caller_id = $1 AND model_id = $2
		  AND occurred_at >= date_trunc('month', $3::timestamptz)
		  AND occurred_at <= $3::timestamptz
	`

	var w usage.WindowUsage
	err := r.db.QueryRow(ctx, query, callerID, modelID, now).Scan(&w.MinuteUsed, &w.MonthUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute window usage: %w", err)
	}

	return &w, nil
}

// Summary aggregates a caller's usage between windowStart and windowEnd.
func (r *UsageEventRepository) Summary(ctx context.Context, callerID int64, windowStart, windowEnd time.Time) (*usage.UsageSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(quantity), 0),
			COALESCE(SUM(cost), 0),
			COUNT(*) FILTER (WHERE success),
			COUNT(*) FILTER (WHERE NOT success),
			COALESCE(AVG(latency_ms), 0)
		FROM usage_events
		WHERE caller_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`

	summary := &usage.UsageSummary{
		CallerID:    callerID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	err := r.db.QueryRow(ctx, query, callerID, windowStart, windowEnd).Scan(
		&summary.TotalRequests,
		&summary.TotalQuantity,
		&summary.TotalCost,
		&summary.SuccessCount,
		&summary.FailureCount,
		&summary.AvgLatencyMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage summary: %w", err)
	}

	return summary, nil
}
