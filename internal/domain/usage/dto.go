// internal/domain/usage/dto.go
package usage

import "time"

// RecordUsageInput carries everything metering needs after an invocation.
type RecordUsageInput struct {
	CallerID  int64
	ModelID   int64
	Quantity  int64
	LatencyMs int64
	Success   bool
	ErrorKind string
}

// UsageSummary aggregates a caller's usage over a window.
type UsageSummary struct {
	CallerID      int64     `json:"caller_id"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	TotalRequests int64     `json:"total_requests"`
	TotalQuantity int64     `json:"total_quantity"`
	TotalCost     float64   `json:"total_cost"`
	SuccessCount  int64     `json:"success_count"`
	FailureCount  int64     `json:"failure_count"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
}

// SummaryWindow selects the aggregation window for GetUsageSummary.
type SummaryWindow string

const (
	WindowDay   SummaryWindow = "day"
	WindowWeek  SummaryWindow = "week"
	WindowMonth SummaryWindow = "month"
)
