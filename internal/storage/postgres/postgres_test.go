package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oselabs/scout/internal/storage"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if SCOUT_TEST_PG_DSN is set
	dsn := os.Getenv("SCOUT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: SCOUT_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	now := time.Now().UTC()

	c := &storage.Company{
		ID:          "testpg1234",
		Name:        "Acme PG",
		Website:     "https://acme-pg.example",
		Email:       "info@acme-pg.example",
		Phone:       "+1-555-0100",
		Address:     "1 Main St",
		Description: "Widgets",
		SourceURL:   "https://dir.example/acme-pg",
		CreatedAt:   now,
	}

	if err := b.Save(ctx, c); err != nil {
		t.Fatalf("Failed to save company: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{Website: "https://acme-pg.example"})
	if err != nil {
		t.Fatalf("Failed to query companies: %v", err)
	}

	// Can be more than 1 if tests run repeatedly, so check the most recent
	if len(results) < 1 {
		t.Fatalf("Expected at least 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Name != c.Name || r.Email != c.Email || r.SourceURL != c.SourceURL {
		t.Errorf("round trip mismatch: %+v", r)
	}
}
