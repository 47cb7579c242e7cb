// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"modelmart-service/internal/domain/plan"
	xerrors "modelmart-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const planColumns = `id, plan_code, model_id, version, name, description,
	       base_price, currency, unit, minute_limit, month_limit,
	       status, is_public, created_at, updated_at`

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var p plan.Plan
	err := row.Scan(
		&p.ID, &p.PlanCode, &p.ModelID, &p.Version, &p.Name, &p.Description,
		&p.BasePrice, &p.Currency, &p.Unit, &p.MinuteLimit, &p.MonthLimit,
		&p.Status, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	return &p, nil
}

// Create publishes a plan. Plans referenced by settled payments are immutable;
// a pricing change is a new row with version bumped and the old row retired.
func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (
			plan_code, model_id, version, name, description,
			base_price, currency, unit, minute_limit, month_limit,
			status, is_public
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		p.PlanCode, p.ModelID, p.Version, p.Name, p.Description,
		p.BasePrice, p.Currency, p.Unit, p.MinuteLimit, p.MonthLimit,
		p.Status, p.IsPublic,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	return nil
}

// FindByID retrieves a plan by ID
func (r *PlanRepository) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE id = $1`, planColumns)
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

// NextVersion returns the version number the next revision of a plan code
// should carry.
func (r *PlanRepository) NextVersion(ctx context.Context, planCode string) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM plans WHERE plan_code = $1`

	var version int
	if err := r.db.QueryRow(ctx, query, planCode).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to compute next plan version: %w", err)
	}

	return version, nil
}

// Retire marks a plan version as retired so it no longer appears in listings.
// Existing subscriptions keep pointing at the retired row.
func (r *PlanRepository) Retire(ctx context.Context, id int64) error {
	query := `UPDATE plans SET status = $1, updated_at = NOW() WHERE id = $2 AND status = 'active'`

	result, err := r.db.Exec(ctx, query, plan.StatusRetired, id)
	if err != nil {
		return fmt.Errorf("failed to retire plan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// List retrieves plans with filters
func (r *PlanRepository) List(ctx context.Context, filters *plan.PlanListFilters) ([]plan.Plan, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filters.ModelID != nil {
		conditions = append(conditions, fmt.Sprintf("model_id = $%d", argPos))
		args = append(args, *filters.ModelID)
		argPos++
	}

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.PublicOnly {
		conditions = append(conditions, "is_public = TRUE")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM plans
		WHERE %s
		ORDER BY model_id, plan_code, version DESC
	`, planColumns, strings.Join(conditions, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []plan.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}

	return plans, nil
}
