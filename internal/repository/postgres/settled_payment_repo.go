// internal/repository/postgres/settled_payment_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"modelmart-service/internal/domain/payment"
	xerrors "modelmart-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettledPaymentRepository is the idempotency witness for webhook processing.
// The unique constraint on settlement_ref is the hard backstop: two deliveries
// of the same settlement can never both insert, even if they race past the
// redis lock.
type SettledPaymentRepository struct {
	db *pgxpool.Pool
}

func NewSettledPaymentRepository(db *pgxpool.Pool) *SettledPaymentRepository {
	return &SettledPaymentRepository{db: db}
}

// InsertWithTx records a settled payment. A duplicate settlement reference
// maps to ErrDuplicateSettlement so the caller can roll back and return the
// previously-produced subscription id.
func (r *SettledPaymentRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, sp *payment.SettledPayment) error {
	query := `
		INSERT INTO settled_payments (settlement_ref, subscription_id, amount, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := tx.QueryRow(ctx, query, sp.SettlementRef, sp.SubscriptionID, sp.Amount, sp.Currency).
		Scan(&sp.ID, &sp.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return xerrors.ErrDuplicateSettlement
	}
	if err != nil {
		return fmt.Errorf("failed to insert settled payment: %w", err)
	}

	return nil
}

// FindByRef looks up the witness for a settlement reference.
func (r *SettledPaymentRepository) FindByRef(ctx context.Context, settlementRef string) (*payment.SettledPayment, error) {
	query := `
		SELECT id, settlement_ref, subscription_id, amount, currency, created_at
		FROM settled_payments
		WHERE settlement_ref = $1
	`

	var sp payment.SettledPayment
	err := r.db.QueryRow(ctx, query, settlementRef).Scan(
		&sp.ID, &sp.SettlementRef, &sp.SubscriptionID, &sp.Amount, &sp.Currency, &sp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find settled payment: %w", err)
	}

	return &sp, nil
}
