// Package shadow provisions account skeletons for users who have not signed
// up yet, and later migrates everything they accrued into their real
// identity.
package shadow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainlyhq/trainly-core/internal/app"
	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/credits"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/secrets"
)

type Provisioner struct {
	db     *pgxpool.Pool
	chats  *chat.Service
	apps   *app.Service
	ledger *credits.Ledger
}

func NewProvisioner(db *pgxpool.Pool, chats *chat.Service, apps *app.Service, ledger *credits.Ledger) *Provisioner {
	return &Provisioner{db: db, chats: chats, apps: apps, ledger: ledger}
}

type ProvisionParams struct {
	// ExternalID lets the caller pin the shadow user id. Optional.
	ExternalID string
	// Email enables a later migration by address. Optional; anonymous
	// shadow accounts can only migrate via explicit shadow-id handoff.
	Email string
	Tier  string
}

// ProvisionResult carries every generated identifier so the client SDK can
// store them. Secrets appear in plaintext here and nowhere else.
type ProvisionResult struct {
	ShadowUserID string `json:"shadow_user_id"`
	OrgID        string `json:"org_id"`
	ChatID       string `json:"chat_id"`
	ChatAPIKey   string `json:"chat_api_key"`
	AppID        string `json:"app_id"`
	AppSecret    string `json:"app_secret"`
	JWTSecret    string `json:"jwt_secret"`
}

// Provision creates the full skeleton: credits, default org, default chat
// with an API key and published model settings, and a default app wired to
// that chat. The shadow-account row is written first: its partial unique
// index on non-migrated emails is what rejects duplicates, so two
// concurrent provisions for one address cannot both succeed.
func (p *Provisioner) Provision(ctx context.Context, params ProvisionParams) (*ProvisionResult, error) {
	if params.Tier == "" {
		params.Tier = credits.TierFree
	}

	shadowID := params.ExternalID
	if shadowID == "" {
		shadowID = secrets.NewShadowUserID()
	}

	if params.Email != "" {
		_, err := p.db.Exec(ctx,
			`INSERT INTO shadow_accounts (shadow_user_id, email, migrated) VALUES ($1, $2, false)`,
			shadowID, params.Email)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return nil, errs.DuplicateShadowAccount()
			}
			return nil, fmt.Errorf("create shadow account: %w", err)
		}
	}

	if err := p.ledger.EnsureAccount(ctx, shadowID, params.Tier); err != nil {
		return nil, err
	}

	var orgID string
	err := p.db.QueryRow(ctx,
		`INSERT INTO organizations (id, owner_id, name) VALUES ($1, $2, 'Personal') RETURNING id`,
		uuid.NewString(), shadowID,
	).Scan(&orgID)
	if err != nil {
		return nil, fmt.Errorf("create default organization: %w", err)
	}

	c, apiKey, err := p.chats.Create(ctx, chat.CreateParams{
		OrgID:   orgID,
		OwnerID: shadowID,
		Title:   "My Chat",
	})
	if err != nil {
		return nil, err
	}

	a, err := p.apps.Create(ctx, app.CreateParams{
		Name:         "Default App",
		ParentChatID: c.ID,
		DeveloperID:  shadowID,
	})
	if err != nil {
		return nil, err
	}

	return &ProvisionResult{
		ShadowUserID: shadowID,
		OrgID:        orgID,
		ChatID:       c.ID,
		ChatAPIKey:   apiKey,
		AppID:        a.ID,
		AppSecret:    a.AppSecret,
		JWTSecret:    a.JWTSecret,
	}, nil
}
