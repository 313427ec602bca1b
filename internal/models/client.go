package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ClientActive   = "active"
	ClientArchived = "archived"
)

type Client struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	WorkspaceID  uuid.UUID  `json:"workspace_id" db:"workspace_id"`
	CompanyName  string     `json:"company_name" db:"company_name"`
	ContactName  *string    `json:"contact_name,omitempty" db:"contact_name"`
	ContactEmail *string    `json:"contact_email,omitempty" db:"contact_email"`
	// Opaque magic-link token granting the client read access to their report.
	AccessToken  string     `json:"access_token" db:"access_token"`
	Status       string     `json:"status" db:"status"`
	HourlyRate   float64    `json:"hourly_rate" db:"hourly_rate"`
	Currency     string     `json:"currency" db:"currency"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty" db:"last_viewed_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
