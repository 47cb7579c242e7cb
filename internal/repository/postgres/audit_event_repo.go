// internal/repository/postgres/audit_event_repo.go
package postgres

import (
	"context"
	"fmt"

	"modelmart-service/internal/domain/payment"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEventRepository persists one row per reconciliation branch. Inserts run
// on the pool, not inside the reconciliation transaction, so a rolled-back
// settlement still leaves its audit trail behind.
type AuditEventRepository struct {
	db *pgxpool.Pool
}

func NewAuditEventRepository(db *pgxpool.Pool) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

// Insert appends an audit event.
func (r *AuditEventRepository) Insert(ctx context.Context, ev *payment.AuditEvent) error {
	query := `
		INSERT INTO payment_audit_events (settlement_ref, kind, outcome, detail, subscription_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, ev.SettlementRef, ev.Kind, ev.Outcome, ev.Detail, ev.SubscriptionID).
		Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// ListRecent retrieves the most recent audit events for operator review.
func (r *AuditEventRepository) ListRecent(ctx context.Context, limit int) ([]payment.AuditEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, settlement_ref, kind, outcome, detail, subscription_id, created_at
		FROM payment_audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := []payment.AuditEvent{}
	for rows.Next() {
		var ev payment.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.SettlementRef, &ev.Kind, &ev.Outcome, &ev.Detail, &ev.SubscriptionID, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, ev)
	}

	return events, nil
}
