// internal/service/reconcile/reconcile_service.go
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modelmart-service/internal/domain/entitlement"
	"modelmart-service/internal/domain/model"
	"modelmart-service/internal/domain/payment"
	"modelmart-service/internal/domain/plan"
	"modelmart-service/internal/domain/usage"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/pkg/lock"
	"modelmart-service/internal/service/metering"
	"modelmart-service/internal/service/pricing"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const settlementLockTTL = 30 * time.Second

// SubscriptionStore is the entitlement store surface reconciliation mutates.
type SubscriptionStore interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, sub *entitlement.Subscription) error
	FindActive(ctx context.Context, callerID, modelID int64) (*entitlement.Subscription, error)
	FindActiveForUpdate(ctx context.Context, tx pgx.Tx, callerID, modelID int64) (*entitlement.Subscription, error)
	ExtendPeriodWithTx(ctx context.Context, tx pgx.Tx, id int64, newPeriodEnd time.Time) error
	CancelWithTx(ctx context.Context, tx pgx.Tx, id int64) error
}

// SettledPaymentStore is the idempotency witness store.
type SettledPaymentStore interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, sp *payment.SettledPayment) error
	FindByRef(ctx context.Context, settlementRef string) (*payment.SettledPayment, error)
}

// EarningsStore credits owners inside the settlement transaction.
type EarningsStore interface {
	CreditWithTx(ctx context.Context, tx pgx.Tx, ownerID int64, amount float64, source usage.CreditSource, sourceRef string) (bool, error)
}

// AuditStore persists one record per reconciliation branch.
type AuditStore interface {
	Insert(ctx context.Context, ev *payment.AuditEvent) error
}

type PlanStore interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
}

type ModelStore interface {
	FindByID(ctx context.Context, id int64) (*model.Model, error)
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Locker serializes processing per settlement reference.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// AuditPublisher pushes audit events to live operator subscribers.
type AuditPublisher interface {
	PublishAudit(ev payment.AuditEvent)
}

// Service consumes asynchronous payment-provider events and reconciles them
// into subscription state exactly once per distinct settled payment.
type Service struct {
	db               TxRunner
	locks            Locker
	subscriptionRepo SubscriptionStore
	settledRepo      SettledPaymentStore
	earningsRepo     EarningsStore
	auditRepo        AuditStore
	planRepo         PlanStore
	modelRepo        ModelStore
	publisher        AuditPublisher
	revenueShare     float64
	logger           *zap.Logger
}

func NewService(
	db TxRunner,
	locks Locker,
	subscriptionRepo SubscriptionStore,
	settledRepo SettledPaymentStore,
	earningsRepo EarningsStore,
	auditRepo AuditStore,
	planRepo PlanStore,
	modelRepo ModelStore,
	publisher AuditPublisher,
	revenueShare float64,
	logger *zap.Logger,
) *Service {
	if revenueShare <= 0 || revenueShare > 1 {
		revenueShare = 0.80
	}
	return &Service{
		db:               db,
		locks:            locks,
		subscriptionRepo: subscriptionRepo,
		settledRepo:      settledRepo,
		earningsRepo:     earningsRepo,
		auditRepo:        auditRepo,
		planRepo:         planRepo,
		modelRepo:        modelRepo,
		publisher:        publisher,
		revenueShare:     revenueShare,
		logger:           logger,
	}
}

// HandleEvent processes one webhook delivery. Before any mutation the settled
// payment witness is checked; redeliveries return the previously-produced
// subscription id without re-crediting. Failures are recorded for operator
// review, never retried blindly here: the provider's own redelivery is the
// retry path.
func (s *Service) HandleEvent(ctx context.Context, ev payment.Event) (*payment.Result, error) {
	if ev.SettlementRef == "" {
		err := fmt.Errorf("%w: empty settlement reference", xerrors.ErrMalformedMetadata)
		s.audit(ctx, ev, payment.OutcomeMalformed, err.Error(), nil)
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, "settlement:"+ev.SettlementRef, settlementLockTTL)
	if errors.Is(err, lock.ErrLockHeld) {
		// A concurrent delivery of the same reference is mid-flight; let the
		// provider redeliver after it finishes.
		return nil, fmt.Errorf("settlement %s: %w", ev.SettlementRef, lock.ErrLockHeld)
	}
	if err != nil {
		// Lock service unavailable. Processing continues: the unique
		// constraint on settled_payments still guarantees exactly-once.
		s.logger.Warn("settlement lock unavailable, relying on unique constraint",
			zap.String("settlement_ref", ev.SettlementRef),
			zap.Error(err),
		)
	} else {
		defer release()
	}

	if prior, err := s.settledRepo.FindByRef(ctx, ev.SettlementRef); err == nil {
		s.audit(ctx, ev, payment.OutcomeDuplicate, "settlement already processed", &prior.SubscriptionID)
		return &payment.Result{OK: true, SubscriptionID: prior.SubscriptionID, Outcome: payment.OutcomeDuplicate}, nil
	} else if !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check settled payment witness: %w", err)
	}

	intent, err := payment.ParseMetadataKey(ev.Metadata)
	if err != nil {
		s.audit(ctx, ev, payment.OutcomeMalformed, err.Error(), nil)
		return nil, err
	}

	switch ev.Kind {
	case payment.EventCreated:
		return s.settleNew(ctx, ev, intent, false)
	case payment.EventStarted:
		return s.settleNew(ctx, ev, intent, true)
	case payment.EventRenewed:
		return s.renew(ctx, ev, intent)
	case payment.EventEnded:
		return s.end(ctx, ev, intent)
	default:
		err := fmt.Errorf("%w: unknown event kind %q", xerrors.ErrInvalidInput, ev.Kind)
		s.audit(ctx, ev, payment.OutcomeFailed, err.Error(), nil)
		return nil, err
	}
}

// settleNew handles CREATED (one-off purchase, period from pricing rules at
// the unit the caller paid for) and STARTED (recurring start, fixed one
// billing cycle regardless of unit).
func (s *Service) settleNew(ctx context.Context, ev payment.Event, intent *payment.BillingIntent, recurring bool) (*payment.Result, error) {
	p, err := s.planRepo.FindByID(ctx, intent.PlanID)
	if err != nil {
		s.audit(ctx, ev, payment.OutcomeFailed, fmt.Sprintf("plan %d: %v", intent.PlanID, err), nil)
		return nil, fmt.Errorf("failed to load plan %d: %w", intent.PlanID, err)
	}
	if p.ModelID != intent.ModelID {
		err := fmt.Errorf("%w: plan %d does not belong to model %d", xerrors.ErrMalformedMetadata, intent.PlanID, intent.ModelID)
		s.audit(ctx, ev, payment.OutcomeMalformed, err.Error(), nil)
		return nil, err
	}

	m, err := s.modelRepo.FindByID(ctx, intent.ModelID)
	if err != nil {
		s.audit(ctx, ev, payment.OutcomeFailed, fmt.Sprintf("model %d: %v", intent.ModelID, err), nil)
		return nil, fmt.Errorf("failed to load model %d: %w", intent.ModelID, err)
	}

	now := time.Now().UTC()
	var periodEnd time.Time
	if recurring {
		periodEnd = now.Add(pricing.RenewalCycle)
	} else {
		// Use the unit from the metadata key, not the plan row: the quote
		// priced that unit, so the grant must match it. A month plan bought
		// at the hourly quote earns an hour, not a month.
		periodEnd, err = pricing.PeriodEnd(now, intent.Unit)
		if err != nil {
			s.audit(ctx, ev, payment.OutcomeFailed, err.Error(), nil)
			return nil, err
		}
	}

	sub := &entitlement.Subscription{
		Reference:     fmt.Sprintf("SUB-%s", ulid.Make()),
		CallerID:      intent.CallerID,
		ModelID:       intent.ModelID,
		PlanID:        intent.PlanID,
		Status:        entitlement.StatusActive,
		PeriodStart:   now,
		PeriodEnd:     periodEnd,
		SettlementRef: sql.NullString{String: ev.SettlementRef, Valid: true},
	}

	txErr := s.db.WithinTx(ctx, func(tx pgx.Tx) error {
		if err := s.subscriptionRepo.CreateWithTx(ctx, tx, sub); err != nil {
			return err
		}
		if err := s.recordSettlement(ctx, tx, ev, sub.ID); err != nil {
			return err
		}
		return s.creditSettlement(ctx, tx, m.OwnerID, ev)
	})

	if xerrors.Is(txErr, xerrors.ErrConflictingEntitlement) {
		// An active grant from a different settlement already exists. Do not
		// guess which one should win; surface for manual reconciliation.
		detail := s.conflictDetail(ctx, intent)
		s.audit(ctx, ev, payment.OutcomeConflict, detail, nil)
		return nil, txErr
	}
	if xerrors.Is(txErr, xerrors.ErrDuplicateSettlement) {
		// Raced past the witness check; resolve to the winner's subscription.
		return s.resolveDuplicate(ctx, ev)
	}
	if txErr != nil {
		s.audit(ctx, ev, payment.OutcomeFailed, txErr.Error(), nil)
		return nil, txErr
	}

	s.audit(ctx, ev, payment.OutcomeSettled, "subscription created", &sub.ID)
	s.logger.Info("settlement created subscription",
		zap.String("settlement_ref", ev.SettlementRef),
		zap.String("kind", string(ev.Kind)),
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("caller_id", intent.CallerID),
		zap.Int64("model_id", intent.ModelID),
		zap.Float64("amount", ev.Amount),
	)

	return &payment.Result{OK: true, SubscriptionID: sub.ID, Outcome: payment.OutcomeSettled}, nil
}

// renew extends the existing active subscription by one billing cycle and
// credits the renewal amount. No second subscription row is created.
func (s *Service) renew(ctx context.Context, ev payment.Event, intent *payment.BillingIntent) (*payment.Result, error) {
	m, err := s.modelRepo.FindByID(ctx, intent.ModelID)
	if err != nil {
		s.audit(ctx, ev, payment.OutcomeFailed, fmt.Sprintf("model %d: %v", intent.ModelID, err), nil)
		return nil, fmt.Errorf("failed to load model %d: %w", intent.ModelID, err)
	}

	var subID int64
	txErr := s.db.WithinTx(ctx, func(tx pgx.Tx) error {
		sub, err := s.subscriptionRepo.FindActiveForUpdate(ctx, tx, intent.CallerID, intent.ModelID)
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return fmt.Errorf("%w: no active subscription to renew", xerrors.ErrNotEntitled)
		}
		if err != nil {
			return err
		}
		subID = sub.ID

		if err := s.subscriptionRepo.ExtendPeriodWithTx(ctx, tx, sub.ID, sub.PeriodEnd.Add(pricing.RenewalCycle)); err != nil {
			return err
		}
		if err := s.recordSettlement(ctx, tx, ev, sub.ID); err != nil {
			return err
		}
		return s.creditSettlement(ctx, tx, m.OwnerID, ev)
	})

	if xerrors.Is(txErr, xerrors.ErrDuplicateSettlement) {
		return s.resolveDuplicate(ctx, ev)
	}
	if txErr != nil {
		s.audit(ctx, ev, payment.OutcomeFailed, txErr.Error(), nil)
		return nil, txErr
	}

	s.audit(ctx, ev, payment.OutcomeSettled, "subscription renewed", &subID)
	s.logger.Info("settlement renewed subscription",
		zap.String("settlement_ref", ev.SettlementRef),
		zap.Int64("subscription_id", subID),
		zap.Float64("amount", ev.Amount),
	)

	return &payment.Result{OK: true, SubscriptionID: subID, Outcome: payment.OutcomeSettled}, nil
}

// end cancels the active subscription. No earnings effect.
func (s *Service) end(ctx context.Context, ev payment.Event, intent *payment.BillingIntent) (*payment.Result, error) {
	var subID int64
	txErr := s.db.WithinTx(ctx, func(tx pgx.Tx) error {
		sub, err := s.subscriptionRepo.FindActiveForUpdate(ctx, tx, intent.CallerID, intent.ModelID)
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return fmt.Errorf("%w: no active subscription to end", xerrors.ErrNotEntitled)
		}
		if err != nil {
			return err
		}
		subID = sub.ID

		if err := s.subscriptionRepo.CancelWithTx(ctx, tx, sub.ID); err != nil {
			return err
		}
		return s.recordSettlement(ctx, tx, ev, sub.ID)
	})

	if xerrors.Is(txErr, xerrors.ErrDuplicateSettlement) {
		return s.resolveDuplicate(ctx, ev)
	}
	if txErr != nil {
		s.audit(ctx, ev, payment.OutcomeFailed, txErr.Error(), nil)
		return nil, txErr
	}

	s.audit(ctx, ev, payment.OutcomeSettled, "subscription cancelled", &subID)
	s.logger.Info("settlement ended subscription",
		zap.String("settlement_ref", ev.SettlementRef),
		zap.Int64("subscription_id", subID),
	)

	return &payment.Result{OK: true, SubscriptionID: subID, Outcome: payment.OutcomeSettled}, nil
}

func (s *Service) recordSettlement(ctx context.Context, tx pgx.Tx, ev payment.Event, subscriptionID int64) error {
	return s.settledRepo.InsertWithTx(ctx, tx, &payment.SettledPayment{
		SettlementRef:  ev.SettlementRef,
		SubscriptionID: subscriptionID,
		Amount:         ev.Amount,
		Currency:       ev.Currency,
	})
}

func (s *Service) creditSettlement(ctx context.Context, tx pgx.Tx, ownerID int64, ev payment.Event) error {
	share := metering.Round5(ev.Amount * s.revenueShare)
	_, err := s.earningsRepo.CreditWithTx(ctx, tx, ownerID, share, usage.CreditSourceSettlement, ev.SettlementRef)
	return err
}

// resolveDuplicate answers a redelivery that lost the insert race: the witness
// now exists, so report the winner's subscription id as a success.
func (s *Service) resolveDuplicate(ctx context.Context, ev payment.Event) (*payment.Result, error) {
	prior, err := s.settledRepo.FindByRef(ctx, ev.SettlementRef)
	if err != nil {
		return nil, fmt.Errorf("duplicate settlement %s but witness lookup failed: %w", ev.SettlementRef, err)
	}

	s.audit(ctx, ev, payment.OutcomeDuplicate, "settlement already processed", &prior.SubscriptionID)
	return &payment.Result{OK: true, SubscriptionID: prior.SubscriptionID, Outcome: payment.OutcomeDuplicate}, nil
}

func (s *Service) conflictDetail(ctx context.Context, intent *payment.BillingIntent) string {
	existing, err := s.subscriptionRepo.FindActive(ctx, intent.CallerID, intent.ModelID)
	if err != nil {
		return "active subscription already exists"
	}
	return fmt.Sprintf("active subscription %d (ref %s) already exists", existing.ID, existing.Reference)
}

// audit records the branch outcome. Audit writes run outside the settlement
// transaction so even rolled-back settlements leave a trail; an audit failure
// is logged, never allowed to mask the payment outcome.
func (s *Service) audit(ctx context.Context, ev payment.Event, outcome payment.AuditOutcome, detail string, subscriptionID *int64) {
	record := &payment.AuditEvent{
		SettlementRef: ev.SettlementRef,
		Kind:          ev.Kind,
		Outcome:       outcome,
	}
	if detail != "" {
		record.Detail = sql.NullString{String: detail, Valid: true}
	}
	if subscriptionID != nil {
		record.SubscriptionID = sql.NullInt64{Int64: *subscriptionID, Valid: true}
	}

	if err := s.auditRepo.Insert(ctx, record); err != nil {
		s.logger.Error("failed to record payment audit event",
			zap.String("settlement_ref", ev.SettlementRef),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
	}

	if s.publisher != nil {
		s.publisher.PublishAudit(*record)
	}
}
