// internal/domain/plan/entity.go
package plan

import (
	"database/sql"
	"time"
)

// BillingUnit is the duration granularity a plan is sold in.
type BillingUnit string

const (
	UnitHour  BillingUnit = "hour"
	UnitDay   BillingUnit = "day"
	UnitWeek  BillingUnit = "week"
	UnitMonth BillingUnit = "month"
)

type PlanStatus string

const (
	StatusActive  PlanStatus = "active"
	StatusRetired PlanStatus = "retired"
)

// Plan is a model owner's offer. Once a settled payment references a plan the
// row is immutable; pricing changes are published as a new plan version.
type Plan struct {
	ID       int64          `json:"id" db:"id"`
	PlanCode string         `json:"plan_code" db:"plan_code"`
	ModelID  int64          `json:"model_id" db:"model_id"`
	Version  int            `json:"version" db:"version"`
	Name     string         `json:"name" db:"name"`
	Description sql.NullString `json:"description,omitempty" db:"description"`

	// Pricing
	BasePrice float64     `json:"base_price" db:"base_price"`
	Currency  string      `json:"currency" db:"currency"`
	Unit      BillingUnit `json:"unit" db:"unit"`

	// Quota ceilings; NULL means "use platform defaults", never unlimited
	MinuteLimit sql.NullInt32 `json:"minute_limit,omitempty" db:"minute_limit"`
	MonthLimit  sql.NullInt32 `json:"month_limit,omitempty" db:"month_limit"`

	// Status
	Status   PlanStatus `json:"status" db:"status"`
	IsPublic bool       `json:"is_public" db:"is_public"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidUnit reports whether u is one of the four supported billing units.
func ValidUnit(u BillingUnit) bool {
	switch u {
	case UnitHour, UnitDay, UnitWeek, UnitMonth:
		return true
	}
	return false
}
