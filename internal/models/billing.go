package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription rows are derived from checkout payments; PayMongo's basic
// checkout API has no recurring subscriptions, so periods are computed from
// the payment date.
type Subscription struct {
	ID          string     `json:"id" db:"id"` // provider checkout session id
	WorkspaceID uuid.UUID  `json:"workspace_id" db:"workspace_id"`
	Plan        string     `json:"plan" db:"plan"`
	Status      string     `json:"status" db:"status"`
	PeriodStart *time.Time `json:"period_start,omitempty" db:"period_start"`
	PeriodEnd   *time.Time `json:"period_end,omitempty" db:"period_end"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// WebhookEvent is the idempotency record for inbound payment-provider
// events, keyed by the provider's event id stored verbatim.
type WebhookEvent struct {
	ID          string     `json:"id" db:"id"`
	Type        string     `json:"type" db:"type"`
	Status      string     `json:"status" db:"status"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
