package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/identity"
	"github.com/trainlyhq/trainly-core/internal/models"
	"github.com/trainlyhq/trainly-core/internal/secrets"
	"github.com/trainlyhq/trainly-core/internal/token"
)

type fakeApps struct {
	app *models.App
}

func (f *fakeApps) ResolveClientID(ctx context.Context, clientID string) (*models.App, error) {
	if f.app == nil || clientID != f.app.ClientID() {
		return nil, errs.InvalidClient()
	}
	return f.app, nil
}

type fakeChats struct {
	chat *models.Chat
}

func (f *fakeChats) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	if f.chat == nil || f.chat.ID != id {
		return nil, errors.New("no rows")
	}
	return f.chat, nil
}

type fakeGrants struct {
	authorized map[string]bool
	err        error
}

func (f *fakeGrants) IsAuthorized(ctx context.Context, userID, appID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.authorized[userID+"/"+appID], nil
}

type fakeVerifier struct {
	subjects map[string]string
}

func (f *fakeVerifier) Verify(ctx context.Context, subjectToken string) (identity.Subject, error) {
	sub, ok := f.subjects[subjectToken]
	if !ok {
		return identity.Subject{}, errs.InvalidSubjectToken()
	}
	return identity.Subject{ID: sub}, nil
}

func testService(jwtSecret string) (*Service, *models.App) {
	app := &models.App{
		ID:           "app_1",
		Name:         "Acme Helper",
		JWTSecret:    jwtSecret,
		ParentChatID: "chat_1",
		Capabilities: []string{"ask", "upload"},
		IsActive:     true,
	}
	chat := &models.Chat{ID: "chat_1"}
	grants := &fakeGrants{authorized: map[string]bool{"user_1/app_1": true}}
	verifier := &fakeVerifier{subjects: map[string]string{"good-id-token": "user_1"}}
	return NewService(&fakeApps{app: app}, &fakeChats{chat: chat}, grants, verifier), app
}

func validRequest() ExchangeRequest {
	return ExchangeRequest{
		GrantType:        GrantTypeTokenExchange,
		SubjectTokenType: TokenTypeIDToken,
		SubjectToken:     "good-id-token",
		ClientID:         "trainly_app_chat_1",
		Scope:            "chat.query chat.upload",
	}
}

func TestExchange(t *testing.T) {
	secret := secrets.NewJWTSecret()
	svc, _ := testService(secret)
	now := time.Now()
	svc.WithClock(func() time.Time { return now })

	resp, err := svc.Exchange(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}

	if resp.TokenType != "Bearer" || resp.ExpiresIn != 3600 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Scope != "chat.query chat.upload" {
		t.Errorf("scope = %q", resp.Scope)
	}
	if resp.ChatID != "chat_1" {
		t.Errorf("chat_id = %q", resp.ChatID)
	}
	if resp.IssuedTokenType != TokenTypeAccessToken {
		t.Errorf("issued_token_type = %q", resp.IssuedTokenType)
	}

	claims, err := token.Verifier{}.Verify(token.VerifyInput{Token: resp.AccessToken, Secret: secret, Now: now})
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "user_1" || claims.ChatID != "chat_1" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.SubchatID != token.SubchatID("chat_1", "user_1") {
		t.Error("subchat id not bound to (chat, subject)")
	}
}

func TestExchangeDenylistInvariance(t *testing.T) {
	secret := secrets.NewJWTSecret()
	svc, app := testService(secret)
	// Poisoned app config: denied names in the stored allow-list.
	app.Capabilities = []string{"ask", "upload", "list_files", "download_file"}

	req := validRequest()
	req.Scope = "chat.query list_files download_file"

	resp, err := svc.Exchange(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := token.Verifier{}.Verify(token.VerifyInput{Token: resp.AccessToken, Secret: secret, Now: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range claims.Capabilities {
		if c == "list_files" || c == "download_file" {
			t.Fatalf("denied capability %q minted into token", c)
		}
	}
	if resp.Scope != "chat.query" {
		t.Errorf("scope = %q, want chat.query", resp.Scope)
	}
}

func TestExchangeFailures(t *testing.T) {
	svc, app := testService(secrets.NewJWTSecret())

	tests := []struct {
		name     string
		mutate   func(r *ExchangeRequest)
		setup    func()
		wantCode string
	}{
		{
			name:     "wrong grant type",
			mutate:   func(r *ExchangeRequest) { r.GrantType = "authorization_code" },
			wantCode: "invalid_request",
		},
		{
			name:     "wrong subject token type",
			mutate:   func(r *ExchangeRequest) { r.SubjectTokenType = "urn:ietf:params:oauth:token-type:saml2" },
			wantCode: "invalid_request",
		},
		{
			name:     "bad subject token",
			mutate:   func(r *ExchangeRequest) { r.SubjectToken = "forged" },
			wantCode: "invalid_subject_token",
		},
		{
			name:     "unknown client",
			mutate:   func(r *ExchangeRequest) { r.ClientID = "trainly_app_other" },
			wantCode: "invalid_client",
		},
		{
			name:     "malformed client id",
			mutate:   func(r *ExchangeRequest) { r.ClientID = "chat_1" },
			wantCode: "invalid_client",
		},
		{
			name:     "api disabled",
			mutate:   func(r *ExchangeRequest) {},
			setup:    func() { app.IsAPIDisabled = true },
			wantCode: "invalid_client",
		},
		{
			name:     "scope empties out",
			mutate:   func(r *ExchangeRequest) { r.Scope = "list_files download_file" },
			wantCode: "insufficient_scope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.IsAPIDisabled = false
			if tt.setup != nil {
				tt.setup()
			}
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Exchange(context.Background(), req)
			if err == nil {
				t.Fatal("expected error")
			}
			e, ok := errs.As(err)
			if !ok {
				t.Fatalf("unstructured error: %v", err)
			}
			if e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestExchangeRevokedAuthorization(t *testing.T) {
	svc, _ := testService(secrets.NewJWTSecret())
	svc.grants = &fakeGrants{authorized: map[string]bool{}}

	_, err := svc.Exchange(context.Background(), validRequest())
	e, ok := errs.As(err)
	if !ok || e.Code != "access_denied" {
		t.Fatalf("err = %v, want access_denied", err)
	}
}

func TestExchangeGrantCheckFailure(t *testing.T) {
	svc, _ := testService(secrets.NewJWTSecret())
	svc.grants = &fakeGrants{err: errors.New("connection refused")}

	_, err := svc.Exchange(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	// An infrastructure failure must stay a plain error, not collapse into
	// a structured denial the client would treat as revoked consent.
	if e, ok := errs.As(err); ok {
		t.Fatalf("got structured %q, want unstructured infrastructure error", e.Code)
	}
}

func TestExchangeArchivedChat(t *testing.T) {
	secret := secrets.NewJWTSecret()
	app := &models.App{
		ID: "app_1", JWTSecret: secret, ParentChatID: "chat_1",
		Capabilities: []string{"ask"}, IsActive: true,
	}
	chat := &models.Chat{ID: "chat_1", IsArchived: true}
	svc := NewService(
		&fakeApps{app: app},
		&fakeChats{chat: chat},
		&fakeGrants{authorized: map[string]bool{"user_1/app_1": true}},
		&fakeVerifier{subjects: map[string]string{"good-id-token": "user_1"}},
	)

	req := validRequest()
	req.Scope = "chat.query"
	_, err := svc.Exchange(context.Background(), req)
	e, ok := errs.As(err)
	if !ok || e.Code != "access_denied" {
		t.Fatalf("err = %v, want access_denied", err)
	}
}
