package models

import "time"

// UserAppAuthorization records that an end user consented to an app
// accessing specific capabilities. This is the artifact the user controls
// and can revoke; revocation fails all subsequent token exchanges closed.
type UserAppAuthorization struct {
	ID                    string     `json:"id" db:"id"`
	TrainlyUserID         string     `json:"trainly_user_id" db:"trainly_user_id"`
	AppID                 string     `json:"app_id" db:"app_id"`
	RequestedCapabilities []string   `json:"requested_capabilities" db:"requested_capabilities"`
	AuthTokenHash         string     `json:"-" db:"auth_token_hash"`
	IsActive              bool       `json:"is_active" db:"is_active"`
	RevokedAt             *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// UserAuthToken is the user-controlled long-lived credential issued at
// consent time. The app developer never sees it.
type UserAuthToken struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	AppID      string     `json:"app_id" db:"app_id"`
	TokenHash  string     `json:"-" db:"token_hash"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// UserAppChat links an end user to the subchat partition materialized for
// them inside an app's parent chat.
type UserAppChat struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	AppID     string    `json:"app_id" db:"app_id"`
	ChatID    string    `json:"chat_id" db:"chat_id"`
	SubchatID string    `json:"subchat_id" db:"subchat_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
