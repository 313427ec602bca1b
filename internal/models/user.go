package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	Email              string     `json:"email" db:"email"`
	Name               string     `json:"name" db:"name"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	Image              *string    `json:"image,omitempty" db:"image"`
	Headline           *string    `json:"headline,omitempty" db:"headline"`
	Bio                *string    `json:"bio,omitempty" db:"bio"`
	WebsiteURL         *string    `json:"website_url,omitempty" db:"website_url"`
	DefaultWorkspaceID *uuid.UUID `json:"default_workspace_id,omitempty" db:"default_workspace_id"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

type Session struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
