// Package chat manages knowledge-base chats and their integration keys.
package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/models"
	"github.com/trainlyhq/trainly-core/internal/secrets"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// DefaultPublishedSettings is the model configuration new chats start with.
var DefaultPublishedSettings = json.RawMessage(`{"model":"gpt-4o-mini","temperature":0.3,"citations":true}`)

type CreateParams struct {
	OrgID   string
	OwnerID string
	Title   string
}

// Create provisions a chat with a fresh tk_ API key. The plaintext key is
// returned once and only its hash is stored.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Chat, string, error) {
	apiKey := secrets.NewIntegrationKey()

	var c models.Chat
	err := s.db.QueryRow(ctx,
		`INSERT INTO chats (id, org_id, owner_id, title, api_key, published_settings)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, org_id, owner_id, title, api_key, is_archived, published_settings, created_at, updated_at`,
		uuid.NewString(), p.OrgID, p.OwnerID, p.Title, HashKey(apiKey), DefaultPublishedSettings,
	).Scan(&c.ID, &c.OrgID, &c.OwnerID, &c.Title, &c.APIKey, &c.IsArchived,
		&c.PublishedSettings, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("create chat: %w", err)
	}
	return &c, apiKey, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	var c models.Chat
	err := s.db.QueryRow(ctx,
		`SELECT id, org_id, owner_id, title, api_key, is_archived, published_settings, created_at, updated_at
		 FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.OrgID, &c.OwnerID, &c.Title, &c.APIKey, &c.IsArchived,
		&c.PublishedSettings, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &c, nil
}

type KeyParams struct {
	ChatID         string
	OwnerID        string
	Capabilities   []capability.Capability
	AllowedOrigins []string
	RateLimitRPM   int
	Description    string
}

// CreateKey issues a chat-scoped integration key. Capabilities pass through
// the validator against the grantable set, so a denied name can never be
// written into a key row.
func (s *Service) CreateKey(ctx context.Context, p KeyParams) (*models.IntegrationKey, string, error) {
	caps := capability.Validate(p.Capabilities, []string{"ask", "upload"})
	if len(caps) == 0 {
		return nil, "", errs.InsufficientScope()
	}
	if p.RateLimitRPM <= 0 {
		p.RateLimitRPM = 60
	}

	plaintext := secrets.NewIntegrationKey()

	var k models.IntegrationKey
	err := s.db.QueryRow(ctx,
		`INSERT INTO integration_keys (id, chat_id, owner_id, key_hash, capabilities, allowed_origins, rate_limit_rpm, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, chat_id, owner_id, key_hash, capabilities, allowed_origins, rate_limit_rpm, description, usage_count, last_used_at, is_revoked, created_at`,
		uuid.NewString(), p.ChatID, p.OwnerID, HashKey(plaintext), capability.Names(caps),
		p.AllowedOrigins, p.RateLimitRPM, p.Description,
	).Scan(&k.ID, &k.ChatID, &k.OwnerID, &k.KeyHash, &k.Capabilities, &k.AllowedOrigins,
		&k.RateLimitRPM, &k.Description, &k.UsageCount, &k.LastUsedAt, &k.IsRevoked, &k.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("create integration key: %w", err)
	}
	return &k, plaintext, nil
}

func (s *Service) GetKeyByHash(ctx context.Context, hash string) (*models.IntegrationKey, error) {
	var k models.IntegrationKey
	err := s.db.QueryRow(ctx,
		`SELECT id, chat_id, owner_id, key_hash, capabilities, allowed_origins, rate_limit_rpm, description, usage_count, last_used_at, is_revoked, created_at
		 FROM integration_keys WHERE key_hash = $1`, hash,
	).Scan(&k.ID, &k.ChatID, &k.OwnerID, &k.KeyHash, &k.Capabilities, &k.AllowedOrigins,
		&k.RateLimitRPM, &k.Description, &k.UsageCount, &k.LastUsedAt, &k.IsRevoked, &k.CreatedAt)
	if err != nil {
		return nil, errs.AccessDenied("invalid integration key")
	}
	if k.IsRevoked {
		return nil, errs.AccessDenied("integration key revoked")
	}
	return &k, nil
}

func (s *Service) ListKeys(ctx context.Context, chatID string) ([]models.IntegrationKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, chat_id, owner_id, key_hash, capabilities, allowed_origins, rate_limit_rpm, description, usage_count, last_used_at, is_revoked, created_at
		 FROM integration_keys WHERE chat_id = $1 ORDER BY created_at DESC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []models.IntegrationKey
	for rows.Next() {
		var k models.IntegrationKey
		if err := rows.Scan(&k.ID, &k.ChatID, &k.OwnerID, &k.KeyHash, &k.Capabilities,
			&k.AllowedOrigins, &k.RateLimitRPM, &k.Description, &k.UsageCount,
			&k.LastUsedAt, &k.IsRevoked, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeKey is permanent. There is no un-revoke. The key must belong to
// chatID; a chat credential cannot revoke another chat's keys.
func (s *Service) RevokeKey(ctx context.Context, chatID, keyID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE integration_keys SET is_revoked = true WHERE id = $1 AND chat_id = $2`,
		keyID, chatID)
	if err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.AccessDenied("invalid integration key")
	}
	return nil
}

// RecordKeyUsage bumps the bookkeeping counters. Called from the worker so
// the request path never blocks on it.
func (s *Service) RecordKeyUsage(ctx context.Context, keyID string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE integration_keys SET usage_count = usage_count + 1, last_used_at = $2 WHERE id = $1`,
		keyID, at)
	if err != nil {
		return fmt.Errorf("record key usage: %w", err)
	}
	return nil
}

// EnsureUserLink materializes the (user, app, chat, subchat) row the first
// time an end user touches an app's chat. Idempotent; later calls no-op.
// Reports whether the link was created by this call.
func (s *Service) EnsureUserLink(ctx context.Context, userID, appID, chatID, subchatID string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO user_app_chats (id, user_id, app_id, chat_id, subchat_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, app_id) DO NOTHING`,
		uuid.NewString(), userID, appID, chatID, subchatID)
	if err != nil {
		return false, fmt.Errorf("ensure user app chat: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
