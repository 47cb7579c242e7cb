// internal/domain/payment/entity.go
package payment

import (
	"database/sql"
	"time"

	"modelmart-service/internal/domain/plan"
)

// EventKind is the payment provider's webhook event type.
type EventKind string

const (
	EventCreated EventKind = "CREATED"
	EventStarted EventKind = "STARTED"
	EventRenewed EventKind = "RENEWED"
	EventEnded   EventKind = "ENDED"
)

// Event is one inbound webhook delivery after signature verification.
// Delivery is at-least-once and unordered across distinct settlement
// references; the settlement reference is the idempotency key.
type Event struct {
	Kind          EventKind `json:"event"`
	SettlementRef string    `json:"transaction"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`

	// Metadata is the composite key embedded at pay-link creation time:
	// model:<id>_plan:<id>_caller:<id>_unit:<unit>
	Metadata string `json:"metadata"`
}

// BillingIntent is the parsed metadata: who bought what, under which plan,
// at which quoted unit.
type BillingIntent struct {
	ModelID  int64
	PlanID   int64
	CallerID int64
	Unit     plan.BillingUnit
}

// SettledPayment is the idempotency witness mapping a settlement reference to
// the subscription it produced. Duplicate webhook deliveries resolve here.
type SettledPayment struct {
	ID             int64     `json:"id" db:"id"`
	SettlementRef  string    `json:"settlement_ref" db:"settlement_ref"`
	SubscriptionID int64     `json:"subscription_id" db:"subscription_id"`
	Amount         float64   `json:"amount" db:"amount"`
	Currency       string    `json:"currency" db:"currency"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// AuditOutcome classifies what reconciliation did with an event.
type AuditOutcome string

const (
	OutcomeSettled   AuditOutcome = "settled"
	OutcomeDuplicate AuditOutcome = "duplicate"
	OutcomeConflict  AuditOutcome = "conflict"
	OutcomeMalformed AuditOutcome = "malformed"
	OutcomeFailed    AuditOutcome = "failed"
)

// AuditEvent records every reconciliation branch, success or failure.
// Payments are money-bearing and must never fail silently.
type AuditEvent struct {
	ID             int64          `json:"id" db:"id"`
	SettlementRef  string         `json:"settlement_ref" db:"settlement_ref"`
	Kind           EventKind      `json:"kind" db:"kind"`
	Outcome        AuditOutcome   `json:"outcome" db:"outcome"`
	Detail         sql.NullString `json:"detail,omitempty" db:"detail"`
	SubscriptionID sql.NullInt64  `json:"subscription_id,omitempty" db:"subscription_id"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}
