package revocation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balejosg/openpath/internal/db"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("OPENPATH_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("OPENPATH_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	return pool
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	store := NewPostgresStore(pool)
	ctx := context.Background()

	token := "pg-test-" + time.Now().Format("150405.000000000")
	if err := store.Add(ctx, token, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("add error: %v", err)
	}
	has, err := store.Has(ctx, token)
	if err != nil || !has {
		t.Fatalf("expected revoked, got has=%v err=%v", has, err)
	}

	deleted, err := store.Delete(ctx, token)
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v err=%v", deleted, err)
	}
}

func TestPostgresStoreCleanup(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	store := NewPostgresStore(pool)
	ctx := context.Background()

	token := "pg-cleanup-" + time.Now().Format("150405.000000000")
	if err := store.Add(ctx, token, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("add error: %v", err)
	}
	if has, _ := store.Has(ctx, token); has {
		t.Fatalf("expected expired token not reported revoked")
	}
	if err := store.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup error: %v", err)
	}
}
