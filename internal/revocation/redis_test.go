package revocation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func openTestRedis(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR or REDIS_ADDR not set")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
		return nil
	}
	return client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := openTestRedis(t)
	if client == nil {
		return
	}
	store := NewRedisStore(client)
	defer store.Close()
	ctx := context.Background()

	token := "redis-test-" + time.Now().Format("150405.000000000")
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
	has, _ = store.Has(ctx, token)
	if has {
		t.Fatalf("expected token gone after delete")
	}
}

func TestRedisStoreSkipsAlreadyExpired(t *testing.T) {
	client := openTestRedis(t)
	if client == nil {
		return
	}
	store := NewRedisStore(client)
	defer store.Close()
	ctx := context.Background()

	token := "redis-expired-" + time.Now().Format("150405.000000000")
	if err := store.Add(ctx, token, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("add error: %v", err)
	}
	if has, _ := store.Has(ctx, token); has {
		t.Fatalf("expected expired token not stored")
	}
}
