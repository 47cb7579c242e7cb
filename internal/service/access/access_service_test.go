package access

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"modelmart-service/internal/domain/entitlement"
	"modelmart-service/internal/domain/plan"
	"modelmart-service/internal/domain/usage"
	xerrors "modelmart-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriptionStore struct {
	active *entitlement.Subscription
	subs   []entitlement.Subscription
	err    error
}

func (f *fakeSubscriptionStore) FindActive(_ context.Context, _, _ int64) (*entitlement.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.active == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.active, nil
}

func (f *fakeSubscriptionStore) ListActiveByCaller(_ context.Context, _ int64) ([]entitlement.Subscription, error) {
	return f.subs, f.err
}

func (f *fakeSubscriptionStore) ListByCaller(_ context.Context, _ int64, filters *entitlement.SubscriptionListFilters) ([]entitlement.Subscription, int64, error) {
	return f.subs, int64(len(f.subs)), f.err
}

type fakePlanStore struct {
	p *plan.Plan
}

func (f *fakePlanStore) FindByID(_ context.Context, _ int64) (*plan.Plan, error) {
	if f.p == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.p, nil
}

type fakeUsageStore struct {
	window usage.WindowUsage
	err    error
}

func (f *fakeUsageStore) WindowUsage(_ context.Context, _, _ int64, _ time.Time) (*usage.WindowUsage, error) {
	if f.err != nil {
		return nil, f.err
	}
	w := f.window
	return &w, nil
}

func activeSub() *entitlement.Subscription {
	now := time.Now().UTC()
	return &entitlement.Subscription{
		ID:          11,
		CallerID:    1,
		ModelID:     2,
		PlanID:      3,
		Status:      entitlement.StatusActive,
		PeriodStart: now.Add(-time.Hour),
		PeriodEnd:   now.Add(time.Hour),
	}
}

func planWithLimits(minute, month int32) *plan.Plan {
	return &plan.Plan{
		ID:          3,
		ModelID:     2,
		BasePrice:   100,
		Unit:        plan.UnitMonth,
		MinuteLimit: sql.NullInt32{Int32: minute, Valid: true},
		MonthLimit:  sql.NullInt32{Int32: month, Valid: true},
		Status:      plan.StatusActive,
	}
}

func newTestService(subs *fakeSubscriptionStore, plans *fakePlanStore, events *fakeUsageStore) *Service {
	return NewService(subs, plans, events, Limits{DefaultMinuteLimit: 60, DefaultMonthLimit: 100000}, zap.NewNop())
}

func TestCheckAccess(t *testing.T) {
	t.Parallel()

	t.Run("no subscription is a decision, not an error", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&fakeSubscriptionStore{}, &fakePlanStore{}, &fakeUsageStore{})

		decision, err := svc.CheckAccess(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Nil(t, decision.Subscription)
	})

	t.Run("active subscription allows", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&fakeSubscriptionStore{active: activeSub()}, &fakePlanStore{}, &fakeUsageStore{})

		decision, err := svc.CheckAccess(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		require.NotNil(t, decision.Subscription)
		assert.Equal(t, int64(11), decision.Subscription.ID)
	})

	t.Run("row past its period end denies even while still marked active", func(t *testing.T) {
		t.Parallel()

		sub := activeSub()
		sub.PeriodEnd = time.Now().UTC().Add(-24 * time.Hour)
		svc := newTestService(&fakeSubscriptionStore{active: sub}, &fakePlanStore{}, &fakeUsageStore{})

		decision, err := svc.CheckAccess(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	})
}

func TestCheckQuota(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	t.Run("no subscription returns ErrNotEntitled", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&fakeSubscriptionStore{}, &fakePlanStore{}, &fakeUsageStore{})

		snapshot, err := svc.CheckQuota(context.Background(), 1, 2, now)
		assert.Nil(t, snapshot)
		assert.ErrorIs(t, err, xerrors.ErrNotEntitled)
	})

	t.Run("expired-but-unswept subscription returns ErrNotEntitled", func(t *testing.T) {
		t.Parallel()

		sub := activeSub()
		sub.PeriodEnd = now.Add(-time.Minute)
		svc := newTestService(
			&fakeSubscriptionStore{active: sub},
			&fakePlanStore{p: planWithLimits(60, 1000)},
			&fakeUsageStore{},
		)

		snapshot, err := svc.CheckQuota(context.Background(), 1, 2, now)
		assert.Nil(t, snapshot)
		assert.ErrorIs(t, err, xerrors.ErrNotEntitled)
	})

	t.Run("under both windows is within limits", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(
			&fakeSubscriptionStore{active: activeSub()},
			&fakePlanStore{p: planWithLimits(60, 1000)},
			&fakeUsageStore{window: usage.WindowUsage{MinuteUsed: 59, MonthUsed: 999}},
		)

		snapshot, err := svc.CheckQuota(context.Background(), 1, 2, now)
		require.NoError(t, err)
		assert.True(t, snapshot.WithinLimits)
		assert.Zero(t, snapshot.RetryAfter)
		assert.Equal(t, int64(59), snapshot.MinuteUsed)
		assert.Equal(t, int64(60), snapshot.MinuteLimit)
	})

	t.Run("usage at the limit is exceeded", func(t *testing.T) {
		t.Parallel()

		// the 61st call in a minute window of 60 must be denied
		svc := newTestService(
			&fakeSubscriptionStore{active: activeSub()},
			&fakePlanStore{p: planWithLimits(60, 1000)},
			&fakeUsageStore{window: usage.WindowUsage{MinuteUsed: 60, MonthUsed: 60}},
		)

		snapshot, err := svc.CheckQuota(context.Background(), 1, 2, now)
		require.NoError(t, err)
		assert.False(t, snapshot.WithinLimits)
		assert.Equal(t, 60, snapshot.RetryAfter)
	})

	t.Run("month window exceeded hints an hourly recheck", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(
			&fakeSubscriptionStore{active: activeSub()},
			&fakePlanStore{p: planWithLimits(60, 1000)},
			&fakeUsageStore{window: usage.WindowUsage{MinuteUsed: 5, MonthUsed: 1000}},
		)

		snapshot, err := svc.CheckQuota(context.Background(), 1, 2, now)
		require.NoError(t, err)
		assert.False(t, snapshot.WithinLimits)
		assert.Equal(t, 3600, snapshot.RetryAfter)
	})

	t.Run("minute window takes precedence when both are exceeded", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(
			&fakeSubscriptionStore{active: activeSub()},
			&fakePlanStore{p: planWithLimits(60, 1000)},
			&fakeUsageStore{window: usage.WindowUsage{MinuteUsed: 100, MonthUsed: 5000}},
		)

		snapshot, err := svc.CheckQuota(context.Background(), 1, 2, now)
		require.NoError(t, err)
		assert.False(t, snapshot.WithinLimits)
		assert.Equal(t, 60, snapshot.RetryAfter)
	})

	t.Run("plans without limits fall back to platform defaults", func(t *testing.T) {
		t.Parallel()

		p := &plan.Plan{ID: 3, ModelID: 2, Unit: plan.UnitMonth, Status: plan.StatusActive}
		svc := newTestService(
			&fakeSubscriptionStore{active: activeSub()},
			&fakePlanStore{p: p},
			&fakeUsageStore{window: usage.WindowUsage{MinuteUsed: 10, MonthUsed: 10}},
		)

		snapshot, err := svc.CheckQuota(context.Background(), 1, 2, now)
		require.NoError(t, err)
		assert.True(t, snapshot.WithinLimits)
		assert.Equal(t, int64(60), snapshot.MinuteLimit)
		assert.Equal(t, int64(100000), snapshot.MonthLimit)
	})
}

func TestGetAccessReport(t *testing.T) {
	t.Parallel()

	t.Run("denied report carries no quota", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&fakeSubscriptionStore{}, &fakePlanStore{}, &fakeUsageStore{})

		report, err := svc.GetAccessReport(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.False(t, report.Decision.Allowed)
		assert.Nil(t, report.Quota)
	})

	t.Run("allowed report includes the quota snapshot", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(
			&fakeSubscriptionStore{active: activeSub()},
			&fakePlanStore{p: planWithLimits(60, 1000)},
			&fakeUsageStore{window: usage.WindowUsage{MinuteUsed: 1, MonthUsed: 1}},
		)

		report, err := svc.GetAccessReport(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.True(t, report.Decision.Allowed)
		require.NotNil(t, report.Quota)
		assert.True(t, report.Quota.WithinLimits)
		assert.False(t, report.AsOf.IsZero())
	})
}

func TestListSubscriptions(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeSubscriptionStore{subs: []entitlement.Subscription{*activeSub()}}, &fakePlanStore{}, &fakeUsageStore{})

	result, err := svc.ListSubscriptions(context.Background(), 1, &entitlement.SubscriptionListFilters{Page: -3, PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 100, result.PageSize)
	assert.Equal(t, int64(1), result.Total)
}
