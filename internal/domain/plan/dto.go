// internal/domain/plan/dto.go
package plan

// CreatePlanRequest publishes a new plan version for a model the caller owns.
type CreatePlanRequest struct {
	ModelID     int64       `json:"model_id" binding:"required"`
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description"`
	BasePrice   float64     `json:"base_price" binding:"required,gt=0"`
	Currency    string      `json:"currency"`
	Unit        BillingUnit `json:"unit" binding:"required"`
	MinuteLimit *int32      `json:"minute_limit"`
	MonthLimit  *int32      `json:"month_limit"`
	IsPublic    bool        `json:"is_public"`
}

// PlanListFilters narrows plan listings.
type PlanListFilters struct {
	ModelID    *int64      `form:"model_id"`
	Status     *PlanStatus `form:"status"`
	PublicOnly bool        `form:"public_only"`
}
