// Package audit records credential lifecycle events: issuance, denial,
// rotation, revocation, provisioning, migration. Append-only; privacy
// denials are always written so they can be investigated later.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainlyhq/trainly-core/internal/models"
)

const (
	ActionTokenIssued      = "token.issued"
	ActionTokenDenied      = "token.denied"
	ActionPrivacyViolation = "query.privacy_violation"
	ActionSecretRotated    = "secret.rotated"
	ActionKeyRevoked       = "key.revoked"
	ActionConsentGranted   = "consent.granted"
	ActionConsentRevoked   = "consent.revoked"
	ActionProvisioned      = "shadow.provisioned"
	ActionMigrated         = "shadow.migrated"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type Entry struct {
	UserID       string
	AppID        string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]string
}

// Log writes an audit row. Failures are logged and swallowed: auditing
// must never fail the operation it describes.
func (s *Service) Log(ctx context.Context, e Entry) {
	details, _ := json.Marshal(e.Details)

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (user_id, app_id, action, resource_type, resource_id, details)
		 VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6)`,
		e.UserID, e.AppID, e.Action, e.ResourceType, e.ResourceID, details)
	if err != nil {
		slog.Warn("audit write failed", "action", e.Action, "error", err)
	}
}

type Query struct {
	UserID    string
	AppID     string
	Action    string
	StartDate *time.Time
	Limit     int
	Offset    int
}

func (s *Service) List(ctx context.Context, q Query) ([]models.AuditLog, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	query := `SELECT id, user_id, app_id, action, resource_type, resource_id, details, created_at
			  FROM audit_logs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if q.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, q.UserID)
		argIdx++
	}
	if q.AppID != "" {
		query += fmt.Sprintf(" AND app_id = $%d", argIdx)
		args = append(args, q.AppID)
		argIdx++
	}
	if q.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, q.Action)
		argIdx++
	}
	if q.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *q.StartDate)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		var details json.RawMessage
		if err := rows.Scan(&l.ID, &l.UserID, &l.AppID, &l.Action, &l.ResourceType,
			&l.ResourceID, &details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &l.Details)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
