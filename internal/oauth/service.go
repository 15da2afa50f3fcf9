// Package oauth implements the RFC 8693-shaped token exchange: an identity
// provider's subject assertion goes in, a short-lived capability-scoped
// access token bound to (subject, chat, subchat) comes out.
package oauth

import (
	"context"
	"time"

	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/identity"
	"github.com/trainlyhq/trainly-core/internal/models"
	"github.com/trainlyhq/trainly-core/internal/token"
)

const (
	GrantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"
	TokenTypeIDToken       = "urn:ietf:params:oauth:token-type:id_token"
	TokenTypeAccessToken   = "urn:ietf:params:oauth:token-type:access_token"
)

// AppResolver maps an OAuth client id to the app record.
type AppResolver interface {
	ResolveClientID(ctx context.Context, clientID string) (*models.App, error)
}

// ChatGetter loads the app's parent chat.
type ChatGetter interface {
	GetByID(ctx context.Context, id string) (*models.Chat, error)
}

// AuthorizationChecker reports whether the end user holds an active consent
// grant for the app. Checked on every exchange, never cached.
type AuthorizationChecker interface {
	IsAuthorized(ctx context.Context, userID, appID string) (bool, error)
}

type Service struct {
	apps     AppResolver
	chats    ChatGetter
	grants   AuthorizationChecker
	verifier identity.Verifier
	now      func() time.Time
}

func NewService(apps AppResolver, chats ChatGetter, grants AuthorizationChecker, verifier identity.Verifier) *Service {
	return &Service{apps: apps, chats: chats, grants: grants, verifier: verifier, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type ExchangeRequest struct {
	GrantType        string `json:"grant_type"`
	SubjectTokenType string `json:"subject_token_type"`
	SubjectToken     string `json:"subject_token"`
	ClientID         string `json:"client_id"`
	Scope            string `json:"scope"`
}

type TokenResponse struct {
	AccessToken     string `json:"access_token"`
	IssuedTokenType string `json:"issued_token_type"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int    `json:"expires_in"`
	Scope           string `json:"scope"`
	ChatID          string `json:"chat_id"`
}

// Exchange runs the full flow: grant validation, subject verification, app
// and chat resolution, consent check, capability validation, minting.
// Unknown apps, inactive apps and disabled APIs all surface the same way so
// a probing caller cannot map which chat ids exist.
func (s *Service) Exchange(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	if req.GrantType != GrantTypeTokenExchange {
		return nil, errs.InvalidRequest("unsupported grant_type")
	}
	if req.SubjectTokenType != TokenTypeIDToken {
		return nil, errs.InvalidRequest("unsupported subject_token_type")
	}
	if req.SubjectToken == "" {
		return nil, errs.InvalidSubjectToken()
	}

	subject, err := s.verifier.Verify(ctx, req.SubjectToken)
	if err != nil {
		return nil, errs.InvalidSubjectToken()
	}

	app, err := s.apps.ResolveClientID(ctx, req.ClientID)
	if err != nil {
		return nil, errs.InvalidClient()
	}
	if !app.IsActive || app.IsAPIDisabled {
		return nil, errs.InvalidClient()
	}

	chat, err := s.chats.GetByID(ctx, app.ParentChatID)
	if err != nil {
		return nil, errs.InvalidClient()
	}
	if chat.IsArchived {
		return nil, errs.AccessDenied("chat is archived")
	}

	authorized, err := s.grants.IsAuthorized(ctx, subject.ID, app.ID)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, errs.AccessDenied("user has not authorized this app")
	}

	caps := capability.Validate(capability.ParseScope(req.Scope), app.Capabilities)
	if len(caps) == 0 {
		return nil, errs.InsufficientScope()
	}

	now := s.now()
	accessToken, err := token.Mint(app.JWTSecret, subject.ID, chat.ID, caps, now)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:     accessToken,
		IssuedTokenType: TokenTypeAccessToken,
		TokenType:       "Bearer",
		ExpiresIn:       int(token.TTL.Seconds()),
		Scope:           capability.ScopeString(caps),
		ChatID:          chat.ID,
	}, nil
}
