package reconcile

import (
	"context"
	"testing"
	"time"

	"modelmart-service/internal/domain/entitlement"
	"modelmart-service/internal/domain/model"
	"modelmart-service/internal/domain/payment"
	"modelmart-service/internal/domain/plan"
	"modelmart-service/internal/domain/usage"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/pkg/lock"
	"modelmart-service/internal/service/pricing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ========== Fakes ==========

type memSubscriptionStore struct {
	nextID int64
	rows   map[int64]*entitlement.Subscription
}

func newMemSubscriptionStore() *memSubscriptionStore {
	return &memSubscriptionStore{nextID: 1, rows: map[int64]*entitlement.Subscription{}}
}

func (m *memSubscriptionStore) findActive(callerID, modelID int64) *entitlement.Subscription {
	for _, sub := range m.rows {
		if sub.CallerID == callerID && sub.ModelID == modelID && sub.Status == entitlement.StatusActive {
			return sub
		}
	}
	return nil
}

func (m *memSubscriptionStore) CreateWithTx(_ context.Context, _ pgx.Tx, sub *entitlement.Subscription) error {
	if m.findActive(sub.CallerID, sub.ModelID) != nil {
		return xerrors.ErrConflictingEntitlement
	}
	sub.ID = m.nextID
	m.nextID++
	m.rows[sub.ID] = sub
	return nil
}

func (m *memSubscriptionStore) FindActive(_ context.Context, callerID, modelID int64) (*entitlement.Subscription, error) {
	if sub := m.findActive(callerID, modelID); sub != nil {
		return sub, nil
	}
	return nil, xerrors.ErrNotFound
}

func (m *memSubscriptionStore) FindActiveForUpdate(ctx context.Context, _ pgx.Tx, callerID, modelID int64) (*entitlement.Subscription, error) {
	return m.FindActive(ctx, callerID, modelID)
}

func (m *memSubscriptionStore) ExtendPeriodWithTx(_ context.Context, _ pgx.Tx, id int64, newPeriodEnd time.Time) error {
	sub, ok := m.rows[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	sub.PeriodEnd = newPeriodEnd
	sub.RenewalCount++
	return nil
}

func (m *memSubscriptionStore) CancelWithTx(_ context.Context, _ pgx.Tx, id int64) error {
	sub, ok := m.rows[id]
	if !ok || sub.Status != entitlement.StatusActive {
		return xerrors.ErrNotFound
	}
	sub.Status = entitlement.StatusCancelled
	return nil
}

type memSettledStore struct {
	byRef map[string]*payment.SettledPayment
}

func newMemSettledStore() *memSettledStore {
	return &memSettledStore{byRef: map[string]*payment.SettledPayment{}}
}

func (m *memSettledStore) InsertWithTx(_ context.Context, _ pgx.Tx, sp *payment.SettledPayment) error {
	if _, exists := m.byRef[sp.SettlementRef]; exists {
		return xerrors.ErrDuplicateSettlement
	}
	m.byRef[sp.SettlementRef] = sp
	return nil
}

func (m *memSettledStore) FindByRef(_ context.Context, ref string) (*payment.SettledPayment, error) {
	if sp, ok := m.byRef[ref]; ok {
		return sp, nil
	}
	return nil, xerrors.ErrNotFound
}

type memEarningsStore struct {
	credits map[string]float64 // keyed by source_ref
	owners  map[string]int64
}

func newMemEarningsStore() *memEarningsStore {
	return &memEarningsStore{credits: map[string]float64{}, owners: map[string]int64{}}
}

func (m *memEarningsStore) CreditWithTx(_ context.Context, _ pgx.Tx, ownerID int64, amount float64, _ usage.CreditSource, sourceRef string) (bool, error) {
	if _, exists := m.credits[sourceRef]; exists {
		return false, nil
	}
	m.credits[sourceRef] = amount
	m.owners[sourceRef] = ownerID
	return true, nil
}

type memAuditStore struct {
	events []payment.AuditEvent
}

func (m *memAuditStore) Insert(_ context.Context, ev *payment.AuditEvent) error {
	m.events = append(m.events, *ev)
	return nil
}

func (m *memAuditStore) lastOutcome() payment.AuditOutcome {
	if len(m.events) == 0 {
		return ""
	}
	return m.events[len(m.events)-1].Outcome
}

type fakePlanStore struct{ p *plan.Plan }

func (f *fakePlanStore) FindByID(_ context.Context, _ int64) (*plan.Plan, error) {
	if f.p == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.p, nil
}

type fakeModelStore struct{ m *model.Model }

func (f *fakeModelStore) FindByID(_ context.Context, _ int64) (*model.Model, error) {
	if f.m == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.m, nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type noopLocker struct{ held bool }

func (l *noopLocker) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if l.held {
		return nil, lock.ErrLockHeld
	}
	return func() {}, nil
}

type capturePublisher struct{ published []payment.AuditEvent }

func (c *capturePublisher) PublishAudit(ev payment.AuditEvent) {
	c.published = append(c.published, ev)
}

// ========== Harness ==========

type harness struct {
	svc      *Service
	subs     *memSubscriptionStore
	settled  *memSettledStore
	earnings *memEarningsStore
	audits   *memAuditStore
	locker   *noopLocker
	pub      *capturePublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		subs:     newMemSubscriptionStore(),
		settled:  newMemSettledStore(),
		earnings: newMemEarningsStore(),
		audits:   &memAuditStore{},
		locker:   &noopLocker{},
		pub:      &capturePublisher{},
	}

	plans := &fakePlanStore{p: &plan.Plan{
		ID: 7, ModelID: 3, BasePrice: 100, Currency: "USD",
		Unit: plan.UnitMonth, Status: plan.StatusActive, IsPublic: true,
	}}
	models := &fakeModelStore{m: &model.Model{ID: 3, OwnerID: 55, Status: model.StatusActive}}

	h.svc = NewService(
		passthroughTx{}, h.locker, h.subs, h.settled, h.earnings, h.audits,
		plans, models, h.pub, 0.80, zap.NewNop(),
	)
	return h
}

func createdEvent(ref string) payment.Event {
	return payment.Event{
		Kind:          payment.EventCreated,
		SettlementRef: ref,
		Amount:        100,
		Currency:      "USD",
		Metadata:      payment.BuildMetadataKey(3, 7, 1001, plan.UnitMonth),
	}
}

// ========== Tests ==========

func TestHandleEventCreated(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	result, err := h.svc.HandleEvent(context.Background(), createdEvent("TX-1"))
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, payment.OutcomeSettled, result.Outcome)

	sub := h.subs.rows[result.SubscriptionID]
	require.NotNil(t, sub)
	assert.Equal(t, int64(1001), sub.CallerID)
	assert.Equal(t, int64(3), sub.ModelID)
	assert.Equal(t, int64(7), sub.PlanID)
	assert.Equal(t, entitlement.StatusActive, sub.Status)
	assert.Equal(t, "TX-1", sub.SettlementRef.String)

	// monthly unit grants a calendar month
	assert.True(t, sub.PeriodEnd.After(sub.PeriodStart.AddDate(0, 0, 27)))

	// owner got the revenue share, keyed by the settlement reference
	assert.InDelta(t, 80.0, h.earnings.credits["TX-1"], 1e-9)
	assert.Equal(t, int64(55), h.earnings.owners["TX-1"])

	assert.Equal(t, payment.OutcomeSettled, h.audits.lastOutcome())
	assert.NotEmpty(t, h.pub.published)
}

func TestHandleEventCreatedGrantsPaidUnit(t *testing.T) {
	t.Parallel()

	// The plan row says month, but the caller was quoted and paid the hourly
	// price. The grant must cover an hour, not a month.
	h := newHarness(t)

	ev := payment.Event{
		Kind:          payment.EventCreated,
		SettlementRef: "TX-HOURLY",
		Amount:        5,
		Currency:      "USD",
		Metadata:      payment.BuildMetadataKey(3, 7, 1001, plan.UnitHour),
	}

	result, err := h.svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeSettled, result.Outcome)

	sub := h.subs.rows[result.SubscriptionID]
	require.NotNil(t, sub)
	assert.Equal(t, time.Hour, sub.PeriodEnd.Sub(sub.PeriodStart))
}

func TestHandleEventRedelivery(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ev := createdEvent("TX-2")

	first, err := h.svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)

	// same settlement reference delivered again
	second, err := h.svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, second.OK)
	assert.Equal(t, payment.OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)

	// no second subscription, no second credit
	assert.Len(t, h.subs.rows, 1)
	assert.Len(t, h.earnings.credits, 1)
	assert.Equal(t, payment.OutcomeDuplicate, h.audits.lastOutcome())
}

func TestHandleEventConflictingSettlement(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.svc.HandleEvent(context.Background(), createdEvent("TX-3"))
	require.NoError(t, err)

	// distinct settlement, same (caller, model): must not silently replace
	conflicting := createdEvent("TX-4")
	result, err := h.svc.HandleEvent(context.Background(), conflicting)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, xerrors.ErrConflictingEntitlement)

	assert.Len(t, h.subs.rows, 1)
	assert.Len(t, h.earnings.credits, 1)
	assert.Equal(t, payment.OutcomeConflict, h.audits.lastOutcome())
}

func TestHandleEventMalformedMetadata(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	ev := createdEvent("TX-5")
	ev.Metadata = "model:abc_plan:7_caller:1001"

	result, err := h.svc.HandleEvent(context.Background(), ev)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, xerrors.ErrMalformedMetadata)

	assert.Empty(t, h.subs.rows)
	assert.Empty(t, h.earnings.credits)
	assert.Equal(t, payment.OutcomeMalformed, h.audits.lastOutcome())
}

func TestHandleEventEmptySettlementRef(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	ev := createdEvent("")
	result, err := h.svc.HandleEvent(context.Background(), ev)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, xerrors.ErrMalformedMetadata)
	assert.Equal(t, payment.OutcomeMalformed, h.audits.lastOutcome())
}

func TestHandleEventStarted(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	ev := createdEvent("TX-6")
	ev.Kind = payment.EventStarted

	result, err := h.svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)

	// recurring start grants exactly one billing cycle regardless of unit
	sub := h.subs.rows[result.SubscriptionID]
	require.NotNil(t, sub)
	assert.WithinDuration(t, sub.PeriodStart.Add(pricing.RenewalCycle), sub.PeriodEnd, time.Second)
}

func TestHandleEventRenewed(t *testing.T) {
	t.Parallel()

	t.Run("extends the active period by one cycle", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)

		start := createdEvent("TX-7")
		start.Kind = payment.EventStarted
		first, err := h.svc.HandleEvent(context.Background(), start)
		require.NoError(t, err)

		before := h.subs.rows[first.SubscriptionID].PeriodEnd

		renew := createdEvent("TX-8")
		renew.Kind = payment.EventRenewed
		result, err := h.svc.HandleEvent(context.Background(), renew)
		require.NoError(t, err)
		assert.Equal(t, first.SubscriptionID, result.SubscriptionID)

		sub := h.subs.rows[first.SubscriptionID]
		assert.WithinDuration(t, before.Add(pricing.RenewalCycle), sub.PeriodEnd, time.Second)
		assert.Equal(t, 1, sub.RenewalCount)
		assert.InDelta(t, 80.0, h.earnings.credits["TX-8"], 1e-9)
		assert.Len(t, h.subs.rows, 1)
	})

	t.Run("renewal without an active subscription fails", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)

		renew := createdEvent("TX-9")
		renew.Kind = payment.EventRenewed
		result, err := h.svc.HandleEvent(context.Background(), renew)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, xerrors.ErrNotEntitled)
		assert.Equal(t, payment.OutcomeFailed, h.audits.lastOutcome())
	})
}

func TestHandleEventEnded(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.svc.HandleEvent(context.Background(), createdEvent("TX-10"))
	require.NoError(t, err)

	end := createdEvent("TX-11")
	end.Kind = payment.EventEnded
	result, err := h.svc.HandleEvent(context.Background(), end)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeSettled, result.Outcome)

	sub := h.subs.rows[result.SubscriptionID]
	assert.Equal(t, entitlement.StatusCancelled, sub.Status)

	// ending a grant never credits earnings
	_, credited := h.earnings.credits["TX-11"]
	assert.False(t, credited)
}

func TestHandleEventLockHeld(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.locker.held = true

	result, err := h.svc.HandleEvent(context.Background(), createdEvent("TX-12"))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, lock.ErrLockHeld)
	assert.Empty(t, h.subs.rows)
}

func TestHandleEventUnknownKind(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	ev := createdEvent("TX-13")
	ev.Kind = "REFUNDED"

	result, err := h.svc.HandleEvent(context.Background(), ev)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Equal(t, payment.OutcomeFailed, h.audits.lastOutcome())
}
