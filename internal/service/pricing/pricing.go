// internal/service/pricing/pricing.go
package pricing

import (
	"fmt"
	"math"
	"time"

	"modelmart-service/internal/domain/plan"
	xerrors "modelmart-service/internal/pkg/errors"
)

// Per-unit price multipliers against the plan's base (monthly) price.
const (
	hourMultiplier = 0.05
	dayMultiplier  = 0.20
	weekMultiplier = 0.50
)

// Hard price floors per unit. The floor always wins over the multiplier so
// short grants are never underpriced relative to platform overhead; the
// monthly floor is the base price itself.
const (
	hourFloor = 2.0
	dayFloor  = 8.0
	weekFloor = 30.0
)

// RenewalCycle is the fixed billing cadence for recurring subscriptions.
// Recurring billing implies monthly cadence regardless of plan unit.
const RenewalCycle = 30 * 24 * time.Hour

// Quote is the concrete price for a requested duration unit.
type Quote struct {
	Price float64          `json:"price"`
	Unit  plan.BillingUnit `json:"unit"`
}

// ComputeQuote maps a base price and a requested unit to a concrete price.
// Pure; the only error case is an unknown unit.
func ComputeQuote(basePrice float64, unit plan.BillingUnit) (*Quote, error) {
	var price float64

	switch unit {
	case plan.UnitHour:
		price = math.Max(hourFloor, basePrice*hourMultiplier)
	case plan.UnitDay:
		price = math.Max(dayFloor, basePrice*dayMultiplier)
	case plan.UnitWeek:
		price = math.Max(weekFloor, basePrice*weekMultiplier)
	case plan.UnitMonth:
		price = basePrice
	default:
		return nil, fmt.Errorf("%w: %q", xerrors.ErrInvalidUnit, unit)
	}

	return &Quote{Price: round2(price), Unit: unit}, nil
}

// PeriodEnd maps a grant start and unit to the end of the billing period.
// HOUR/DAY/WEEK are fixed durations; MONTH rolls over to the same day of the
// next month, clamped to the month's last day when that day does not exist
// (Jan 31 -> Feb 28/29).
func PeriodEnd(start time.Time, unit plan.BillingUnit) (time.Time, error) {
	switch unit {
	case plan.UnitHour:
		return start.Add(time.Hour), nil
	case plan.UnitDay:
		return start.Add(24 * time.Hour), nil
	case plan.UnitWeek:
		return start.Add(7 * 24 * time.Hour), nil
	case plan.UnitMonth:
		return addCalendarMonth(start), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", xerrors.ErrInvalidUnit, unit)
	}
}

func addCalendarMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}

	if last := daysIn(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
