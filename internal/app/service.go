// Package app manages developer applications and their two-tier secret
// hierarchy: the appSecret authenticating the developer's backend and the
// jwtSecret signing per-end-user scoped tokens. Rotation of either replaces
// the stored value in one update; dependent tokens die with the old value
// unless a grace window is configured for the jwtSecret.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/models"
	"github.com/trainlyhq/trainly-core/internal/secrets"
)

const clientIDPrefix = "trainly_app_"

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

const appColumns = `id, name, app_secret, jwt_secret, prev_jwt_secret, jwt_rotated_at,
	parent_chat_id, developer_id, published_by, capabilities, is_active, is_api_disabled,
	status, settings, published_settings, created_at, updated_at`

func scanApp(row pgx.Row) (*models.App, error) {
	var a models.App
	err := row.Scan(&a.ID, &a.Name, &a.AppSecret, &a.JWTSecret, &a.PrevJWTSecret,
		&a.JWTRotatedAt, &a.ParentChatID, &a.DeveloperID, &a.PublishedBy, &a.Capabilities,
		&a.IsActive, &a.IsAPIDisabled, &a.Status, &a.Settings, &a.PublishedSettings,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type CreateParams struct {
	Name         string
	ParentChatID string
	DeveloperID  string
	Capabilities []string
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*models.App, error) {
	if len(p.Capabilities) == 0 {
		p.Capabilities = []string{"ask", "upload"}
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO apps (id, name, app_secret, jwt_secret, parent_chat_id, developer_id, published_by, capabilities, is_active, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $6, $7, true, 'draft')
		 RETURNING `+appColumns,
		secrets.NewAppID(), p.Name, secrets.NewAppSecret(), secrets.NewJWTSecret(),
		p.ParentChatID, p.DeveloperID, p.Capabilities,
	)
	a, err := scanApp(row)
	if err != nil {
		return nil, fmt.Errorf("create app: %w", err)
	}
	return a, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.App, error) {
	a, err := scanApp(s.db.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	return a, nil
}

// ResolveClientID maps an OAuth client id to its app. Unknown ids and
// structurally invalid ids both surface as invalid_client so callers learn
// nothing about which chats exist.
func (s *Service) ResolveClientID(ctx context.Context, clientID string) (*models.App, error) {
	chatID, ok := strings.CutPrefix(clientID, clientIDPrefix)
	if !ok || chatID == "" {
		return nil, errs.InvalidClient()
	}

	a, err := scanApp(s.db.QueryRow(ctx,
		`SELECT `+appColumns+` FROM apps WHERE parent_chat_id = $1`, chatID))
	if err != nil {
		return nil, errs.InvalidClient()
	}
	return a, nil
}

// GetByChatID resolves the app owning a chat, used on the scoped query path
// to find the jwtSecret for verification.
func (s *Service) GetByChatID(ctx context.Context, chatID string) (*models.App, error) {
	a, err := scanApp(s.db.QueryRow(ctx,
		`SELECT `+appColumns+` FROM apps WHERE parent_chat_id = $1`, chatID))
	if err != nil {
		return nil, errs.InvalidClient()
	}
	return a, nil
}

// RotateJWTSecret replaces the signing secret. The old value is retained
// only to serve a configured grace window; with grace zero it is dead the
// moment this commits.
func (s *Service) RotateJWTSecret(ctx context.Context, appID string) (*models.App, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE apps
		 SET prev_jwt_secret = jwt_secret, jwt_secret = $2, jwt_rotated_at = $3, updated_at = $3
		 WHERE id = $1
		 RETURNING `+appColumns,
		appID, secrets.NewJWTSecret(), time.Now().UTC(),
	)
	a, err := scanApp(row)
	if err != nil {
		return nil, fmt.Errorf("rotate jwt secret: %w", err)
	}
	return a, nil
}

// RotateAppSecret replaces the backend credential outright. There is no
// dual-validity window for app secrets.
func (s *Service) RotateAppSecret(ctx context.Context, appID string) (*models.App, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE apps SET app_secret = $2, updated_at = $3 WHERE id = $1 RETURNING `+appColumns,
		appID, secrets.NewAppSecret(), time.Now().UTC(),
	)
	a, err := scanApp(row)
	if err != nil {
		return nil, fmt.Errorf("rotate app secret: %w", err)
	}
	return a, nil
}

func (s *Service) SetStatus(ctx context.Context, appID string, status models.AppStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE apps SET status = $2, updated_at = now() WHERE id = $1`, appID, status)
	if err != nil {
		return fmt.Errorf("set app status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.InvalidClient()
	}
	return nil
}
