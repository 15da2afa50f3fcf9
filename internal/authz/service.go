// Package authz implements the user-facing consent flow: present an app's
// requested capabilities, record the grant, and issue the user-controlled
// auth token. The grant is the artifact the user can revoke; once revoked,
// token exchange for that (user, app) pair fails closed.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainlyhq/trainly-core/internal/app"
	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/models"
	"github.com/trainlyhq/trainly-core/internal/secrets"
)

type Service struct {
	db   *pgxpool.Pool
	apps *app.Service
}

func NewService(db *pgxpool.Pool, apps *app.Service) *Service {
	return &Service{db: db, apps: apps}
}

// Prompt is what the consent screen shows before the user decides.
type Prompt struct {
	AppID        string                  `json:"app_id"`
	AppName      string                  `json:"app_name"`
	Capabilities []capability.Capability `json:"capabilities"`
}

// Present resolves an authorization request into the capability list shown
// to the user. The requested scope is validated against the app's allow-list
// here so the screen never promises more than a token could carry.
func (s *Service) Present(ctx context.Context, clientID, scope string) (*Prompt, error) {
	a, err := s.apps.ResolveClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	caps := capability.Validate(capability.ParseScope(scope), a.Capabilities)
	if len(caps) == 0 {
		return nil, errs.InsufficientScope()
	}

	return &Prompt{AppID: a.ID, AppName: a.Name, Capabilities: caps}, nil
}

type Grant struct {
	Authorization *models.UserAppAuthorization `json:"authorization"`
	// UserAuthToken is returned exactly once, to the user, never to the app.
	UserAuthToken string `json:"user_auth_token"`
}

// Authorize records consent. Re-authorizing the same (user, app) pair
// updates the capability set in place and rotates the user auth token
// instead of stacking duplicate grants.
func (s *Service) Authorize(ctx context.Context, userID, appID string, requested []capability.Capability) (*Grant, error) {
	if userID == "" {
		return nil, errs.NotAuthenticated()
	}

	a, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return nil, errs.InvalidClient()
	}

	caps := capability.Validate(requested, a.Capabilities)
	if len(caps) == 0 {
		return nil, errs.InsufficientScope()
	}

	plaintext := secrets.NewUserAuthToken()
	tokenHash := chat.HashKey(plaintext)

	var auth models.UserAppAuthorization
	err = s.db.QueryRow(ctx,
		`INSERT INTO user_app_authorizations (id, trainly_user_id, app_id, requested_capabilities, auth_token_hash, is_active)
		 VALUES ($1, $2, $3, $4, $5, true)
		 ON CONFLICT (trainly_user_id, app_id) DO UPDATE
		 SET requested_capabilities = $4, auth_token_hash = $5, is_active = true,
		     revoked_at = NULL, updated_at = now()
		 RETURNING id, trainly_user_id, app_id, requested_capabilities, auth_token_hash, is_active, revoked_at, created_at, updated_at`,
		uuid.NewString(), userID, appID, capability.Names(caps), tokenHash,
	).Scan(&auth.ID, &auth.TrainlyUserID, &auth.AppID, &auth.RequestedCapabilities,
		&auth.AuthTokenHash, &auth.IsActive, &auth.RevokedAt, &auth.CreatedAt, &auth.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("record authorization: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO user_auth_tokens (id, user_id, app_id, token_hash)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, app_id) DO UPDATE SET token_hash = $4`,
		uuid.NewString(), userID, appID, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("store user auth token: %w", err)
	}

	return &Grant{Authorization: &auth, UserAuthToken: plaintext}, nil
}

// IsAuthorized reports whether an active grant exists. The token exchange
// calls this synchronously on every exchange; revocations take effect
// immediately because nothing caches the answer. Only a missing row means
// "not authorized"; an infrastructure failure propagates so it cannot be
// mistaken for a denial.
func (s *Service) IsAuthorized(ctx context.Context, userID, appID string) (bool, error) {
	var active bool
	err := s.db.QueryRow(ctx,
		`SELECT is_active FROM user_app_authorizations WHERE trainly_user_id = $1 AND app_id = $2`,
		userID, appID,
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check authorization: %w", err)
	}
	return active, nil
}

// Revoke marks the grant inactive. The row stays for audit; only is_active
// flips, and it fails all later exchanges for the pair.
func (s *Service) Revoke(ctx context.Context, userID, appID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE user_app_authorizations
		 SET is_active = false, revoked_at = $3, updated_at = $3
		 WHERE trainly_user_id = $1 AND app_id = $2 AND is_active`,
		userID, appID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke authorization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.AccessDenied("no active authorization for this app")
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.UserAppAuthorization, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, trainly_user_id, app_id, requested_capabilities, auth_token_hash, is_active, revoked_at, created_at, updated_at
		 FROM user_app_authorizations WHERE trainly_user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list authorizations: %w", err)
	}
	defer rows.Close()

	var grants []models.UserAppAuthorization
	for rows.Next() {
		var a models.UserAppAuthorization
		if err := rows.Scan(&a.ID, &a.TrainlyUserID, &a.AppID, &a.RequestedCapabilities,
			&a.AuthTokenHash, &a.IsActive, &a.RevokedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan authorization: %w", err)
		}
		grants = append(grants, a)
	}
	return grants, rows.Err()
}
