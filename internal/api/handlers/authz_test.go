package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trainlyhq/trainly-core/internal/api/middleware"
	"github.com/trainlyhq/trainly-core/internal/app"
	"github.com/trainlyhq/trainly-core/internal/audit"
	"github.com/trainlyhq/trainly-core/internal/authz"
	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/document"
	"github.com/trainlyhq/trainly-core/internal/identity"
	"github.com/trainlyhq/trainly-core/internal/token"
	"github.com/trainlyhq/trainly-core/internal/vectorstore"
)

func TestRevokeWithPurgeEmptiesSubchat(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	chatSvc := chat.NewService(pool)
	appSvc := app.NewService(pool)
	authzSvc := authz.NewService(pool, appSvc)
	docSvc := document.NewService(pool)
	store := vectorstore.NewPgVectorStore(pool)
	h := NewAuthzHandler(authzSvc, appSvc, store, audit.NewService(pool))

	owner := "owner_" + uuid.NewString()
	orgID := createOrg(t, pool, owner)
	c, _, err := chatSvc.Create(ctx, chat.CreateParams{OrgID: orgID, OwnerID: owner, Title: "KB"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := appSvc.Create(ctx, app.CreateParams{Name: "Helper", ParentChatID: c.ID, DeveloperID: owner})
	if err != nil {
		t.Fatal(err)
	}

	user := "enduser_" + uuid.NewString()
	if _, err := authzSvc.Authorize(ctx, user, a.ID, capability.FromNames([]string{"ask", "upload"})); err != nil {
		t.Fatal(err)
	}

	mine := token.SubchatID(c.ID, user)
	neighbour := token.SubchatID(c.ID, "enduser_"+uuid.NewString())
	for _, sub := range []string{mine, neighbour} {
		doc, err := docSvc.Create(ctx, document.CreateParams{
			ChatID: c.ID, SubchatID: sub,
			Filename: "notes.txt", FileType: "txt", FileSize: 4, Content: "text",
		})
		if err != nil {
			t.Fatal(err)
		}
		err = store.Upsert(ctx, []vectorstore.Chunk{{
			DocumentID: doc.ID, ChatID: c.ID, SubchatID: sub,
			ChunkIndex: 0, Content: "text", Embedding: make([]float32, 1536),
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	mux := chi.NewRouter()
	mux.With(middleware.RequireUser(identity.Static{Subject: user})).
		Delete("/v1/authorizations/{appID}", h.Revoke)
	req := httptest.NewRequest(http.MethodDelete, "/v1/authorizations/"+a.ID+"?purge=true", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	count := func(sub string) int {
		var n int
		if err := pool.QueryRow(ctx,
			`SELECT count(*) FROM document_chunks WHERE chat_id = $1 AND subchat_id = $2`,
			c.ID, sub,
		).Scan(&n); err != nil {
			t.Fatal(err)
		}
		return n
	}
	if got := count(mine); got != 0 {
		t.Errorf("revoked user's partition still holds %d chunks", got)
	}
	if got := count(neighbour); got != 1 {
		t.Errorf("neighbouring partition has %d chunks, want 1", got)
	}

	// The grant itself is gone too.
	active, err := authzSvc.IsAuthorized(ctx, user, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Fatal("authorization still active after revoke")
	}
}
