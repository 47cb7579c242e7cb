// internal/domain/entitlement/entity.go
package entitlement

import (
	"database/sql"
	"time"
)

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
)

// Subscription grants one caller time-boxed access to one model under one plan.
// At most one active subscription may exist per (caller, model) pair; the
// repository enforces this with a partial unique index.
type Subscription struct {
	ID        int64  `json:"id" db:"id"`
	Reference string `json:"reference" db:"reference"`

	CallerID int64 `json:"caller_id" db:"caller_id"`
	ModelID  int64 `json:"model_id" db:"model_id"`
	PlanID   int64 `json:"plan_id" db:"plan_id"`

	Status      SubscriptionStatus `json:"status" db:"status"`
	PeriodStart time.Time          `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time          `json:"period_end" db:"period_end"`

	// SettlementRef ties the grant to the external payment that produced it.
	// Empty for subscriptions created by a synchronous purchase flow.
	SettlementRef sql.NullString `json:"settlement_ref,omitempty" db:"settlement_ref"`

	RenewalCount int          `json:"renewal_count" db:"renewal_count"`
	CancelledAt  sql.NullTime `json:"cancelled_at,omitempty" db:"cancelled_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EffectiveStatus computes the status as observed at now. Expiry is lazy: a
// row may still say active after its period ended.
func (s *Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s.Status == StatusActive && !s.PeriodEnd.After(now) {
		return StatusExpired
	}
	return s.Status
}

// IsActiveAt reports whether the subscription grants access at now.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == StatusActive && s.PeriodEnd.After(now) && !s.PeriodStart.After(now)
}
