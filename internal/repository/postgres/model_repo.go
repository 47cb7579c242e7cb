// internal/repository/postgres/model_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"modelmart-service/internal/domain/model"
	xerrors "modelmart-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const modelColumns = `id, owner_id, slug, name, provider, provider_ref,
	       base_price, status, created_at, updated_at`

type ModelRepository struct {
	db *pgxpool.Pool
}

func NewModelRepository(db *pgxpool.Pool) *ModelRepository {
	return &ModelRepository{db: db}
}

func scanModel(row pgx.Row) (*model.Model, error) {
	var m model.Model
	err := row.Scan(
		&m.ID, &m.OwnerID, &m.Slug, &m.Name, &m.Provider, &m.ProviderRef,
		&m.BasePrice, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan model: %w", err)
	}
	return &m, nil
}

// FindByID retrieves a model by ID
func (r *ModelRepository) FindByID(ctx context.Context, id int64) (*model.Model, error) {
	query := fmt.Sprintf(`SELECT %s FROM models WHERE id = $1`, modelColumns)
	return scanModel(r.db.QueryRow(ctx, query, id))
}

// FindBySlug retrieves a model by its public slug
func (r *ModelRepository) FindBySlug(ctx context.Context, slug string) (*model.Model, error) {
	query := fmt.Sprintf(`SELECT %s FROM models WHERE slug = $1`, modelColumns)
	return scanModel(r.db.QueryRow(ctx, query, slug))
}

// ListActive retrieves all models open for invocation
func (r *ModelRepository) ListActive(ctx context.Context) ([]model.Model, error) {
	query := fmt.Sprintf(`SELECT %s FROM models WHERE status = 'active' ORDER BY slug`, modelColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	models := []model.Model{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, *m)
	}

	return models, nil
}
