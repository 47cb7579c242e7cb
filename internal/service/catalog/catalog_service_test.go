package catalog

import (
	"context"
	"testing"

	"modelmart-service/internal/domain/model"
	"modelmart-service/internal/domain/plan"
	xerrors "modelmart-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memPlanStore struct {
	nextID   int64
	rows     map[int64]*plan.Plan
	versions map[string]int
}

func newMemPlanStore() *memPlanStore {
	return &memPlanStore{nextID: 1, rows: map[int64]*plan.Plan{}, versions: map[string]int{}}
}

func (m *memPlanStore) Create(_ context.Context, p *plan.Plan) error {
	p.ID = m.nextID
	m.nextID++
	m.rows[p.ID] = p
	m.versions[p.PlanCode] = p.Version
	return nil
}

func (m *memPlanStore) FindByID(_ context.Context, id int64) (*plan.Plan, error) {
	if p, ok := m.rows[id]; ok {
		return p, nil
	}
	return nil, xerrors.ErrNotFound
}

func (m *memPlanStore) NextVersion(_ context.Context, planCode string) (int, error) {
	return m.versions[planCode] + 1, nil
}

func (m *memPlanStore) Retire(_ context.Context, id int64) error {
	p, ok := m.rows[id]
	if !ok || p.Status != plan.StatusActive {
		return xerrors.ErrNotFound
	}
	p.Status = plan.StatusRetired
	return nil
}

func (m *memPlanStore) List(_ context.Context, _ *plan.PlanListFilters) ([]plan.Plan, error) {
	out := []plan.Plan{}
	for _, p := range m.rows {
		out = append(out, *p)
	}
	return out, nil
}

type fakeModelStore struct{ m *model.Model }

func (f *fakeModelStore) FindByID(_ context.Context, _ int64) (*model.Model, error) {
	if f.m == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.m, nil
}

func (f *fakeModelStore) FindBySlug(_ context.Context, _ string) (*model.Model, error) {
	if f.m == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.m, nil
}

func (f *fakeModelStore) ListActive(_ context.Context) ([]model.Model, error) {
	if f.m == nil {
		return []model.Model{}, nil
	}
	return []model.Model{*f.m}, nil
}

func testModel() *model.Model {
	return &model.Model{ID: 3, OwnerID: 55, Slug: "summarizer-xl", Status: model.StatusActive}
}

func TestCreatePlan(t *testing.T) {
	t.Parallel()

	req := func() *plan.CreatePlanRequest {
		return &plan.CreatePlanRequest{
			ModelID:   3,
			Name:      "Pro Tier",
			BasePrice: 100,
			Unit:      plan.UnitMonth,
			IsPublic:  true,
		}
	}

	t.Run("owner publishes versioned plan", func(t *testing.T) {
		t.Parallel()

		plans := newMemPlanStore()
		svc := NewService(plans, &fakeModelStore{m: testModel()}, zap.NewNop())

		p, err := svc.CreatePlan(context.Background(), 55, req())
		require.NoError(t, err)
		assert.Equal(t, "summarizer-xl-pro-tier", p.PlanCode)
		assert.Equal(t, 1, p.Version)
		assert.Equal(t, "USD", p.Currency)
		assert.Equal(t, plan.StatusActive, p.Status)

		// republishing the same name bumps the version, never edits in place
		p2, err := svc.CreatePlan(context.Background(), 55, req())
		require.NoError(t, err)
		assert.Equal(t, p.PlanCode, p2.PlanCode)
		assert.Equal(t, 2, p2.Version)
		assert.Len(t, plans.rows, 2)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemPlanStore(), &fakeModelStore{m: testModel()}, zap.NewNop())

		p, err := svc.CreatePlan(context.Background(), 99, req())
		assert.Nil(t, p)
		assert.ErrorIs(t, err, xerrors.ErrForbidden)
	})

	t.Run("invalid unit is rejected", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemPlanStore(), &fakeModelStore{m: testModel()}, zap.NewNop())

		bad := req()
		bad.Unit = "fortnight"
		p, err := svc.CreatePlan(context.Background(), 55, bad)
		assert.Nil(t, p)
		assert.ErrorIs(t, err, xerrors.ErrInvalidUnit)
	})

	t.Run("non-positive price is rejected", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemPlanStore(), &fakeModelStore{m: testModel()}, zap.NewNop())

		bad := req()
		bad.BasePrice = 0
		_, err := svc.CreatePlan(context.Background(), 55, bad)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})
}

func TestRetirePlan(t *testing.T) {
	t.Parallel()

	plans := newMemPlanStore()
	svc := NewService(plans, &fakeModelStore{m: testModel()}, zap.NewNop())

	p, err := svc.CreatePlan(context.Background(), 55, &plan.CreatePlanRequest{
		ModelID: 3, Name: "Basic", BasePrice: 10, Unit: plan.UnitDay,
	})
	require.NoError(t, err)

	// only the owner may retire
	err = svc.RetirePlan(context.Background(), 99, p.ID)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	require.NoError(t, svc.RetirePlan(context.Background(), 55, p.ID))
	assert.Equal(t, plan.StatusRetired, plans.rows[p.ID].Status)
}
