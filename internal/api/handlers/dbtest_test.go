package handlers

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainlyhq/trainly-core/internal/database"
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
	if err := database.RunMigrations(ctx, pool, "../../../migrations"); err != nil {
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
