package chat

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/database"
	"github.com/trainlyhq/trainly-core/internal/errs"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	if err := database.RunMigrations(ctx, pool, "../../migrations"); err != nil {
		t.Fatal(err)
	}
	return pool
}

func createOrg(t *testing.T, pool *pgxpool.Pool, ownerID string) string {
	t.Helper()
	var orgID string
	err := pool.QueryRow(context.Background(),
		`INSERT INTO organizations (id, owner_id, name) VALUES ($1, $2, 'Personal') RETURNING id`,
		uuid.NewString(), ownerID,
	).Scan(&orgID)
	if err != nil {
		t.Fatal(err)
	}
	return orgID
}

func TestRevokeKeyScopedToChat(t *testing.T) {
	pool := testPool(t)
	svc := NewService(pool)
	ctx := context.Background()

	owner := "owner_" + uuid.NewString()
	orgID := createOrg(t, pool, owner)

	holder, _, err := svc.Create(ctx, CreateParams{OrgID: orgID, OwnerID: owner, Title: "Holder"})
	if err != nil {
		t.Fatal(err)
	}
	neighbour, _, err := svc.Create(ctx, CreateParams{OrgID: orgID, OwnerID: owner, Title: "Neighbour"})
	if err != nil {
		t.Fatal(err)
	}

	key, plaintext, err := svc.CreateKey(ctx, KeyParams{
		ChatID:       holder.ID,
		OwnerID:      owner,
		Capabilities: capability.FromNames([]string{"ask"}),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Another chat's credential must not reach this key, even knowing its id.
	err = svc.RevokeKey(ctx, neighbour.ID, key.ID)
	if e, ok := errs.As(err); !ok || e.Code != "access_denied" {
		t.Fatalf("cross-chat revoke: err = %v, want access_denied", err)
	}
	if _, err := svc.GetKeyByHash(ctx, HashKey(plaintext)); err != nil {
		t.Fatalf("key unusable after cross-chat revoke attempt: %v", err)
	}

	// The owning chat revokes as before.
	if err := svc.RevokeKey(ctx, holder.ID, key.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetKeyByHash(ctx, HashKey(plaintext)); err == nil {
		t.Fatal("revoked key still accepted")
	}
}
