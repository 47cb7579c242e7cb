// internal/repository/postgres/earnings_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"modelmart-service/internal/domain/usage"
	xerrors "modelmart-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EarningsRepository credits model owners. Every credit is traceable to
// exactly one usage event or one settlement reference; a unique key on
// (source, source_ref) makes double-crediting impossible, and ledger totals
// are bumped with a single atomic increment rather than read-modify-write.
type EarningsRepository struct {
	db *pgxpool.Pool
}

func NewEarningsRepository(db *pgxpool.Pool) *EarningsRepository {
	return &EarningsRepository{db: db}
}

// querier abstracts over *pgxpool.Pool and pgx.Tx so crediting can run either
// standalone or inside a reconciliation transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Credit records one traceable credit and increments the owner's totals.
// Returns false without error when the (source, source_ref) pair was already
// credited, so retries are safe.
func (r *EarningsRepository) Credit(ctx context.Context, ownerID int64, amount float64, source usage.CreditSource, sourceRef string) (bool, error) {
	return r.credit(ctx, r.db, ownerID, amount, source, sourceRef)
}

// CreditWithTx is Credit inside an existing transaction.
func (r *EarningsRepository) CreditWithTx(ctx context.Context, tx pgx.Tx, ownerID int64, amount float64, source usage.CreditSource, sourceRef string) (bool, error) {
	return r.credit(ctx, tx, ownerID, amount, source, sourceRef)
}

func (r *EarningsRepository) credit(ctx context.Context, q querier, ownerID int64, amount float64, source usage.CreditSource, sourceRef string) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("%w: credit amount must be non-negative", xerrors.ErrInvalidInput)
	}

	insertCredit := `
		INSERT INTO earnings_credits (owner_id, amount, source, source_ref)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source, source_ref) DO NOTHING
		RETURNING id
	`

	var creditID int64
	err := q.QueryRow(ctx, insertCredit, ownerID, amount, source, sourceRef).Scan(&creditID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already credited for this source; idempotent no-op.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert earnings credit: %w", err)
	}

	bumpLedger := `
		INSERT INTO earnings_ledgers (owner_id, lifetime_total, period_total, updated_at)
		VALUES ($1, $2, $2, NOW())
		ON CONFLICT (owner_id) DO UPDATE
		SET lifetime_total = earnings_ledgers.lifetime_total + EXCLUDED.lifetime_total,
		    period_total   = earnings_ledgers.period_total + EXCLUDED.period_total,
		    updated_at     = NOW()
	`

	if _, err := q.Exec(ctx, bumpLedger, ownerID, amount); err != nil {
		return false, fmt.Errorf("failed to increment earnings ledger: %w", err)
	}

	return true, nil
}

// GetLedger retrieves an owner's running totals.
func (r *EarningsRepository) GetLedger(ctx context.Context, ownerID int64) (*usage.EarningsLedger, error) {
	query := `
		SELECT owner_id, lifetime_total, period_total, updated_at
		FROM earnings_ledgers
		WHERE owner_id = $1
	`

	var ledger usage.EarningsLedger
	err := r.db.QueryRow(ctx, query, ownerID).Scan(
		&ledger.OwnerID, &ledger.LifetimeTotal, &ledger.PeriodTotal, &ledger.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get earnings ledger: %w", err)
	}

	return &ledger, nil
}

// ListCredits retrieves an owner's most recent credits for audit views.
func (r *EarningsRepository) ListCredits(ctx context.Context, ownerID int64, limit int) ([]usage.EarningsCredit, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, owner_id, amount, source, source_ref, created_at
		FROM earnings_credits
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings credits: %w", err)
	}
	defer rows.Close()

	credits := []usage.EarningsCredit{}
	for rows.Next() {
		var c usage.EarningsCredit
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Amount, &c.Source, &c.SourceRef, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earnings credit: %w", err)
		}
		credits = append(credits, c)
	}

	return credits, nil
}
