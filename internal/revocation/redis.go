package revocation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/balejosg/openpath/internal/crypto"
)

const redisKeyPrefix = "revoked:"

// RedisStore stores each record as a key with a TTL computed from the
// token's remaining lifetime; redis evicts expired keys on its own, so
// Cleanup has nothing to do.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, redisKeyPrefix+crypto.HashToken(token), "1", ttl).Err()
}

func (s *RedisStore) Has(ctx context.Context, token string) (bool, error) {
	_, err := s.client.Get(ctx, redisKeyPrefix+crypto.HashToken(token)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) (bool, error) {
	deleted, err := s.client.Del(ctx, redisKeyPrefix+crypto.HashToken(token)).Result()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

func (s *RedisStore) Size(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *RedisStore) Cleanup(_ context.Context) error {
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
