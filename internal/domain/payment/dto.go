// internal/domain/payment/dto.go
package payment

// Result is reconciliation's answer for one webhook delivery.
type Result struct {
	OK             bool         `json:"ok"`
	SubscriptionID int64        `json:"subscription_id,omitempty"`
	Outcome        AuditOutcome `json:"outcome"`
}

// PurchaseRequest asks for a pay link quoting a plan at a requested unit.
type PurchaseRequest struct {
	ModelID int64  `json:"model_id" binding:"required"`
	PlanID  int64  `json:"plan_id" binding:"required"`
	Unit    string `json:"unit" binding:"required"`
}

// PayLink is the provider's hosted checkout handle.
type PayLink struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}
