// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"modelmart-service/internal/domain/entitlement"
	xerrors "modelmart-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `id, reference, caller_id, model_id, plan_id,
	       status, period_start, period_end, settlement_ref,
	       renewal_count, cancelled_at, created_at, updated_at`

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func scanSubscription(row pgx.Row) (*entitlement.Subscription, error) {
	var sub entitlement.Subscription
	err := row.Scan(
		&sub.ID, &sub.Reference, &sub.CallerID, &sub.ModelID, &sub.PlanID,
		&sub.Status, &sub.PeriodStart, &sub.PeriodEnd, &sub.SettlementRef,
		&sub.RenewalCount, &sub.CancelledAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &sub, nil
}

// CreateWithTx inserts a subscription within a transaction. A partial unique
// index on (caller_id, model_id) WHERE status = 'active' enforces the
// at-most-one-active invariant; violations map to ErrConflictingEntitlement.
func (r *SubscriptionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, sub *entitlement.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			reference, caller_id, model_id, plan_id,
			status, period_start, period_end, settlement_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(
		ctx, query,
		sub.Reference, sub.CallerID, sub.ModelID, sub.PlanID,
		sub.Status, sub.PeriodStart, sub.PeriodEnd, sub.SettlementRef,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return xerrors.ErrConflictingEntitlement
	}
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// FindByID retrieves a subscription by ID
func (r *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*entitlement.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscriptions WHERE id = $1`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, id))
}

// FindActive retrieves the unique active subscription for a (caller, model)
// pair whose period covers now. Lazy expiry: rows past period_end never match.
func (r *SubscriptionRepository) FindActive(ctx context.Context, callerID, modelID int64) (*entitlement.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE caller_id = $1 AND model_id = $2 AND status = 'active' AND period_end > NOW()
		LIMIT 1
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, callerID, modelID))
}

// FindActiveForUpdate is FindActive inside a transaction with a row lock, for
// renewal/cancellation flows that read then mutate.
func (r *SubscriptionRepository) FindActiveForUpdate(ctx context.Context, tx pgx.Tx, callerID, modelID int64) (*entitlement.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE caller_id = $1 AND model_id = $2 AND status = 'active' AND period_end > NOW()
		LIMIT 1
		FOR UPDATE
	`, subscriptionColumns)
	return scanSubscription(tx.QueryRow(ctx, query, callerID, modelID))
}

// ExtendPeriodWithTx pushes the period end forward for a renewal.
func (r *SubscriptionRepository) ExtendPeriodWithTx(ctx context.Context, tx pgx.Tx, id int64, newPeriodEnd time.Time) error {
	query := `
		UPDATE subscriptions
		SET period_end = $1, renewal_count = renewal_count + 1, updated_at = $2
		WHERE id = $3 AND status = 'active'
	`

	result, err := tx.Exec(ctx, query, newPeriodEnd, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to extend subscription period: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// CancelWithTx transitions an active subscription to cancelled. Status only
// moves forward; cancelling a non-active row is a no-op reported as not found.
func (r *SubscriptionRepository) CancelWithTx(ctx context.Context, tx pgx.Tx, id int64) error {
	query := `
		UPDATE subscriptions
		SET status = $1, cancelled_at = $2, updated_at = $2
		WHERE id = $3 AND status = 'active'
	`

	result, err := tx.Exec(ctx, query, entitlement.StatusCancelled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// ListByCaller retrieves a caller's subscriptions with filters
func (r *SubscriptionRepository) ListByCaller(ctx context.Context, callerID int64, filters *entitlement.SubscriptionListFilters) ([]entitlement.Subscription, int64, error) {
	conditions := []string{"caller_id = $1"}
	args := []interface{}{callerID}
	argPos := 2

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.ModelID != nil {
		conditions = append(conditions, fmt.Sprintf("model_id = $%d", argPos))
		args = append(args, *filters.ModelID)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM subscriptions WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, subscriptionColumns, whereClause, argPos, argPos+1)

	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subscriptions := []entitlement.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, 0, err
		}
		subscriptions = append(subscriptions, *sub)
	}

	return subscriptions, total, nil
}

// ListActiveByCaller retrieves all currently-active subscriptions for a caller
func (r *SubscriptionRepository) ListActiveByCaller(ctx context.Context, callerID int64) ([]entitlement.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE caller_id = $1 AND status = 'active' AND period_end > NOW()
		ORDER BY period_end ASC
	`, subscriptionColumns)

	rows, err := r.db.Query(ctx, query, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	defer rows.Close()

	subscriptions := []entitlement.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, *sub)
	}

	return subscriptions, nil
}

// MarkExpired normalizes rows whose period already ended. Lazy observation in
// FindActive remains authoritative; this is reporting hygiene for the sweeper.
func (r *SubscriptionRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = $1, updated_at = $2
		WHERE status = 'active' AND period_end <= $2
	`

	result, err := r.db.Exec(ctx, query, entitlement.StatusExpired, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired subscriptions: %w", err)
	}

	return result.RowsAffected(), nil
}
