package models

import (
	"encoding/json"
	"time"
)

// Chat is a knowledge base owned by an organization. Apps point at a chat
// through ParentChatID; end users get isolated subchat partitions inside it.
type Chat struct {
	ID                string          `json:"chat_id" db:"id"`
	OrgID             string          `json:"org_id" db:"org_id"`
	OwnerID           string          `json:"owner_id" db:"owner_id"`
	Title             string          `json:"title" db:"title"`
	APIKey            string          `json:"-" db:"api_key"`
	IsArchived        bool            `json:"is_archived" db:"is_archived"`
	PublishedSettings json.RawMessage `json:"published_settings" db:"published_settings"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// IntegrationKey is a chat-scoped API key handed to integrators. Revocation
// is permanent; there is no un-revoke.
type IntegrationKey struct {
	ID             string     `json:"key_id" db:"id"`
	ChatID         string     `json:"chat_id" db:"chat_id"`
	OwnerID        string     `json:"owner_id" db:"owner_id"`
	KeyHash        string     `json:"-" db:"key_hash"`
	Capabilities   []string   `json:"capabilities" db:"capabilities"`
	AllowedOrigins []string   `json:"allowed_origins" db:"allowed_origins"`
	RateLimitRPM   int        `json:"rate_limit_rpm" db:"rate_limit_rpm"`
	Description    string     `json:"description" db:"description"`
	UsageCount     int64      `json:"usage_count" db:"usage_count"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	IsRevoked      bool       `json:"is_revoked" db:"is_revoked"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

type Organization struct {
	ID        string    `json:"org_id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
