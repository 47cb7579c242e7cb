// internal/domain/usage/entity.go
package usage

import (
	"database/sql"
	"time"
)

// UsageEvent is one metered invocation. Rows are append-only; corrections are
// new compensating events, never in-place edits.
type UsageEvent struct {
	ID      int64  `json:"id" db:"id"`
	EventID string `json:"event_id" db:"event_id"`

	CallerID int64 `json:"caller_id" db:"caller_id"`
	ModelID  int64 `json:"model_id" db:"model_id"`

	// Quantity is the token count consumed; for failed invocations it is the
	// best available input-only estimate.
	Quantity  int64   `json:"quantity" db:"quantity"`
	LatencyMs int64   `json:"latency_ms" db:"latency_ms"`
	Cost      float64 `json:"cost" db:"cost"`

	Success   bool           `json:"success" db:"success"`
	ErrorKind sql.NullString `json:"error_kind,omitempty" db:"error_kind"`

	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// WindowUsage holds the two quota window sums for a (caller, model) pair.
type WindowUsage struct {
	MinuteUsed int64
	MonthUsed  int64
}

// EarningsLedger is a model owner's running totals.
type EarningsLedger struct {
	OwnerID       int64     `json:"owner_id" db:"owner_id"`
	LifetimeTotal float64   `json:"lifetime_total" db:"lifetime_total"`
	PeriodTotal   float64   `json:"period_total" db:"period_total"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CreditSource distinguishes what a ledger credit is traceable to.
type CreditSource string

const (
	CreditSourceUsageEvent CreditSource = "usage_event"
	CreditSourceSettlement CreditSource = "settlement"
)

// EarningsCredit is one traceable credit against an owner's ledger. The
// (source, source_ref) pair is unique so the same usage event or settlement
// reference can never credit twice.
type EarningsCredit struct {
	ID        int64        `json:"id" db:"id"`
	OwnerID   int64        `json:"owner_id" db:"owner_id"`
	Amount    float64      `json:"amount" db:"amount"`
	Source    CreditSource `json:"source" db:"source"`
	SourceRef string       `json:"source_ref" db:"source_ref"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
