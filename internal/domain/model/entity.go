// internal/domain/model/entity.go
package model

import "time"

type ModelStatus string

const (
	StatusActive   ModelStatus = "active"
	StatusDisabled ModelStatus = "disabled"
)

// Model is the billable resource: a hosted inference model listed by an owner.
// Catalog management is out of scope here; the billing core only needs the
// owner for earnings crediting and the provider reference for invocation.
type Model struct {
	ID          int64       `json:"id" db:"id"`
	OwnerID     int64       `json:"owner_id" db:"owner_id"`
	Slug        string      `json:"slug" db:"slug"`
	Name        string      `json:"name" db:"name"`
	Provider    string      `json:"provider" db:"provider"`
	ProviderRef string      `json:"provider_ref" db:"provider_ref"`
	BasePrice   float64     `json:"base_price" db:"base_price"`
	Status      ModelStatus `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}
