package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkLog.Date is a YYYY-MM-DD string; the free-tier monthly counter
// matches on its YYYY-MM prefix, so the type must stay textual.
type WorkLog struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	ClientID       uuid.UUID `json:"client_id" db:"client_id"`
	Date           string    `json:"date" db:"date"`
	Summary        string    `json:"summary" db:"summary"`
	HoursWorked    float64   `json:"hours_worked" db:"hours_worked"`
	VideoURL       *string   `json:"video_url" db:"video_url"`
	AttachmentURL  *string   `json:"attachment_url" db:"attachment_url"`
	IsBlocked      bool      `json:"is_blocked" db:"is_blocked"`
	BlockerDetails string    `json:"blocker_details" db:"blocker_details"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
