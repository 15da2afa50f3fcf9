package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentPending   DocumentStatus = "pending"
	DocumentProcessed DocumentStatus = "processed"
	DocumentFailed    DocumentStatus = "failed"
)

// Document is an upload scoped to a single subchat partition. File listing
// and raw download are never exposed through the scoped API.
type Document struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	ChatID    string         `json:"chat_id" db:"chat_id"`
	SubchatID string         `json:"subchat_id" db:"subchat_id"`
	Filename  string         `json:"filename" db:"filename"`
	FileType  string         `json:"file_type" db:"file_type"`
	FileSize  int64          `json:"file_size" db:"file_size"`
	Status    DocumentStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

type AuditLog struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	UserID       *string           `json:"user_id,omitempty" db:"user_id"`
	AppID        *string           `json:"app_id,omitempty" db:"app_id"`
	Action       string            `json:"action" db:"action"`
	ResourceType string            `json:"resource_type" db:"resource_type"`
	ResourceID   *string           `json:"resource_id,omitempty" db:"resource_id"`
	Details      map[string]string `json:"details,omitempty" db:"details"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}
