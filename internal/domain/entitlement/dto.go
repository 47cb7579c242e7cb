// internal/domain/entitlement/dto.go
package entitlement

import "time"

// AccessDecision is the answer to "may this caller run this model right now".
type AccessDecision struct {
	Allowed      bool          `json:"allowed"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// QuotaSnapshot reports windowed usage against plan limits at a point in time.
type QuotaSnapshot struct {
	WithinLimits bool  `json:"within_limits"`
	MinuteUsed   int64 `json:"minute_used"`
	MinuteLimit  int64 `json:"minute_limit"`
	MonthUsed    int64 `json:"month_used"`
	MonthLimit   int64 `json:"month_limit"`

	// RetryAfter is a back-off hint in seconds: 60 when the minute window
	// tripped, 3600 for the monthly window.
	RetryAfter int `json:"retry_after,omitempty"`
}

// AccessReport bundles the decision and quota snapshot for the query surface.
type AccessReport struct {
	Decision AccessDecision `json:"decision"`
	Quota    *QuotaSnapshot `json:"quota,omitempty"`
	AsOf     time.Time      `json:"as_of"`
}

// SubscriptionListFilters narrows subscription listings.
type SubscriptionListFilters struct {
	Status   *SubscriptionStatus `form:"status"`
	ModelID  *int64              `form:"model_id"`
	Page     int                 `form:"page"`
	PageSize int                 `form:"page_size"`
}

// SubscriptionListResponse is a paginated subscription listing.
type SubscriptionListResponse struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Total         int64          `json:"total"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
}
