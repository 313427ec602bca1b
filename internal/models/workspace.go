package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TierFree = "free"
	TierPro  = "pro"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Workspace struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	Slug               string    `json:"slug" db:"slug"`
	Kind               string    `json:"kind" db:"kind"` // freelancer | agency
	Logo               *string   `json:"logo,omitempty" db:"logo"`
	AccentColor        string    `json:"accent_color" db:"accent_color"`
	PortalSlug         *string   `json:"portal_slug,omitempty" db:"portal_slug"`
	Tier               string    `json:"tier" db:"tier"`
	PayMongoCustomerID *string   `json:"-" db:"paymongo_customer_id"`
	NotifyClientView   bool      `json:"notify_client_view" db:"notify_client_view"`
	NotifyClientOnLog  bool      `json:"notify_client_on_log" db:"notify_client_on_log"`
	NotifyWeeklyRecap  bool      `json:"notify_weekly_recap" db:"notify_weekly_recap"`
	APIKeyReadHash     *string   `json:"-" db:"api_key_read_hash"`
	APIKeyWriteHash    *string   `json:"-" db:"api_key_write_hash"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

func (w *Workspace) IsPro() bool {
	return w.Tier == TierPro
}

type Membership struct {
	ID          uuid.UUID `json:"id" db:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id" db:"workspace_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Role        string    `json:"role" db:"role"`
	JoinedAt    time.Time `json:"joined_at" db:"joined_at"`
}

type Invitation struct {
	ID          uuid.UUID `json:"id" db:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id" db:"workspace_id"`
	InviterID   uuid.UUID `json:"inviter_id" db:"inviter_id"`
	Email       string    `json:"email" db:"email"`
	Role        string    `json:"role" db:"role"`
	Token       string    `json:"-" db:"token"`
	Status      string    `json:"status" db:"status"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
