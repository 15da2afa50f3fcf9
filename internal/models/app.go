package models

import (
	"encoding/json"
	"time"
)

type AppStatus string

const (
	AppStatusDraft AppStatus = "draft"
	AppStatusLive  AppStatus = "live"
	AppStatusStale AppStatus = "stale"
)

// App is a developer-owned application bound to exactly one parent chat
// (its shared knowledge base). AppSecret authenticates the developer's
// backend; JWTSecret signs per-end-user scoped tokens.
type App struct {
	ID                string          `json:"app_id" db:"id"`
	Name              string          `json:"name" db:"name"`
	AppSecret         string          `json:"-" db:"app_secret"`
	JWTSecret         string          `json:"-" db:"jwt_secret"`
	PrevJWTSecret     *string         `json:"-" db:"prev_jwt_secret"`
	JWTRotatedAt      *time.Time      `json:"-" db:"jwt_rotated_at"`
	ParentChatID      string          `json:"parent_chat_id" db:"parent_chat_id"`
	DeveloperID       string          `json:"developer_id" db:"developer_id"`
	PublishedBy       string          `json:"published_by" db:"published_by"`
	Capabilities      []string        `json:"capabilities" db:"capabilities"`
	IsActive          bool            `json:"is_active" db:"is_active"`
	IsAPIDisabled     bool            `json:"is_api_disabled" db:"is_api_disabled"`
	Status            AppStatus       `json:"status" db:"status"`
	Settings          json.RawMessage `json:"settings" db:"settings"`
	PublishedSettings json.RawMessage `json:"published_settings" db:"published_settings"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// ClientID is the OAuth client identifier developers paste into their
// backend config. It embeds the parent chat id.
func (a *App) ClientID() string {
	return "trainly_app_" + a.ParentChatID
}
