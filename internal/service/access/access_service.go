// internal/service/access/access_service.go
package access

import (
	"context"
	"fmt"
	"time"

	"modelmart-service/internal/domain/entitlement"
	"modelmart-service/internal/domain/plan"
	"modelmart-service/internal/domain/usage"
	xerrors "modelmart-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Back-off hints in seconds. The minute window takes precedence when both
// windows are exceeded; the monthly hint is a conservative hourly recheck.
const (
	retryAfterMinute = 60
	retryAfterMonth  = 3600
)

// SubscriptionStore is the entitlement store surface the engine reads.
type SubscriptionStore interface {
	FindActive(ctx context.Context, callerID, modelID int64) (*entitlement.Subscription, error)
	ListActiveByCaller(ctx context.Context, callerID int64) ([]entitlement.Subscription, error)
	ListByCaller(ctx context.Context, callerID int64, filters *entitlement.SubscriptionListFilters) ([]entitlement.Subscription, int64, error)
}

// PlanStore resolves the plan attached to an active subscription.
type PlanStore interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
}

// UsageStore answers windowed aggregation queries over the usage ledger.
type UsageStore interface {
	WindowUsage(ctx context.Context, callerID, modelID int64, now time.Time) (*usage.WindowUsage, error)
}

// Limits are the platform defaults applied when a plan carries no explicit
// ceiling. Generous, never unlimited: a missing limit must not mean unbounded
// resource consumption.
type Limits struct {
	DefaultMinuteLimit int64
	DefaultMonthLimit  int64
}

// Service is the access and entitlement engine. It is strictly read-only: the
// read-then-decide is not atomic with the caller's subsequent action, so
// concurrent bursts may be over-admitted slightly. Availability is favored
// over perfect quota precision.
type Service struct {
	subscriptionRepo SubscriptionStore
	planRepo         PlanStore
	usageRepo        UsageStore
	limits           Limits
	logger           *zap.Logger
}

func NewService(
	subscriptionRepo SubscriptionStore,
	planRepo PlanStore,
	usageRepo UsageStore,
	limits Limits,
	logger *zap.Logger,
) *Service {
	if limits.DefaultMinuteLimit <= 0 {
		limits.DefaultMinuteLimit = 60
	}
	if limits.DefaultMonthLimit <= 0 {
		limits.DefaultMonthLimit = 100000
	}
	return &Service{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		usageRepo:        usageRepo,
		limits:           limits,
		logger:           logger,
	}
}

// CheckAccess answers whether the caller holds an active subscription for the
// model. Absence is a decision, not an error; the caller should be routed to
// purchase.
func (s *Service) CheckAccess(ctx context.Context, callerID, modelID int64) (*entitlement.AccessDecision, error) {
	sub, err := s.subscriptionRepo.FindActive(ctx, callerID, modelID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return &entitlement.AccessDecision{Allowed: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active subscription: %w", err)
	}

	// Expiry is lazy: a row can still say active after its period ended, and
	// the sweeper may not have caught up. The period bound decides, not the
	// stored status.
	if !sub.IsActiveAt(time.Now().UTC()) {
		return &entitlement.AccessDecision{Allowed: false}, nil
	}

	return &entitlement.AccessDecision{Allowed: true, Subscription: sub}, nil
}

// CheckQuota computes the two quota windows (last 60 seconds, calendar month
// to date) for the caller's active subscription at now. Returns ErrNotEntitled
// when there is no active subscription.
func (s *Service) CheckQuota(ctx context.Context, callerID, modelID int64, now time.Time) (*entitlement.QuotaSnapshot, error) {
	sub, err := s.subscriptionRepo.FindActive(ctx, callerID, modelID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.ErrNotEntitled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active subscription: %w", err)
	}
	if !sub.IsActiveAt(now) {
		return nil, xerrors.ErrNotEntitled
	}

	p, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %d: %w", sub.PlanID, err)
	}

	minuteLimit := s.limits.DefaultMinuteLimit
	if p.MinuteLimit.Valid {
		minuteLimit = int64(p.MinuteLimit.Int32)
	}
	monthLimit := s.limits.DefaultMonthLimit
	if p.MonthLimit.Valid {
		monthLimit = int64(p.MonthLimit.Int32)
	}

	window, err := s.usageRepo.WindowUsage(ctx, callerID, modelID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to compute usage windows: %w", err)
	}

	snapshot := &entitlement.QuotaSnapshot{
		WithinLimits: true,
		MinuteUsed:   window.MinuteUsed,
		MinuteLimit:  minuteLimit,
		MonthUsed:    window.MonthUsed,
		MonthLimit:   monthLimit,
	}

	minuteExceeded := window.MinuteUsed >= minuteLimit
	monthExceeded := window.MonthUsed >= monthLimit

	if minuteExceeded || monthExceeded {
		snapshot.WithinLimits = false
		if minuteExceeded {
			snapshot.RetryAfter = retryAfterMinute
		} else {
			snapshot.RetryAfter = retryAfterMonth
		}

		s.logger.Info("quota exceeded",
			zap.Int64("caller_id", callerID),
			zap.Int64("model_id", modelID),
			zap.Int64("minute_used", window.MinuteUsed),
			zap.Int64("minute_limit", minuteLimit),
			zap.Int64("month_used", window.MonthUsed),
			zap.Int64("month_limit", monthLimit),
		)
	}

	return snapshot, nil
}

// GetAccessReport is the exposed query surface: decision plus quota snapshot.
func (s *Service) GetAccessReport(ctx context.Context, callerID, modelID int64) (*entitlement.AccessReport, error) {
	now := time.Now().UTC()

	decision, err := s.CheckAccess(ctx, callerID, modelID)
	if err != nil {
		return nil, err
	}

	report := &entitlement.AccessReport{Decision: *decision, AsOf: now}
	if !decision.Allowed {
		return report, nil
	}

	quota, err := s.CheckQuota(ctx, callerID, modelID, now)
	if err != nil {
		return nil, err
	}
	report.Quota = quota

	return report, nil
}

// ListActiveSubscriptions retrieves the caller's currently-active grants.
func (s *Service) ListActiveSubscriptions(ctx context.Context, callerID int64) ([]entitlement.Subscription, error) {
	subs, err := s.subscriptionRepo.ListActiveByCaller(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	return subs, nil
}

// ListSubscriptions retrieves the caller's subscriptions with filters.
func (s *Service) ListSubscriptions(ctx context.Context, callerID int64, filters *entitlement.SubscriptionListFilters) (*entitlement.SubscriptionListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	subs, total, err := s.subscriptionRepo.ListByCaller(ctx, callerID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return &entitlement.SubscriptionListResponse{
		Subscriptions: subs,
		Total:         total,
		Page:          filters.Page,
		PageSize:      filters.PageSize,
	}, nil
}
