package revocation

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balejosg/openpath/internal/crypto"
)

// PostgresStore keeps token hashes with an explicit expiry column, so
// records survive restarts. Requires a reachable database: an unreachable
// pool makes Has fail, which verification treats as revoked.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

func (s *PostgresStore) Add(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (token_hash, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = GREATEST(revoked_tokens.expires_at, EXCLUDED.expires_at)
	`, crypto.HashToken(token), expiresAt.UTC())
	return err
}

func (s *PostgresStore) Has(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM revoked_tokens WHERE token_hash = $1 AND expires_at > $2
		)
	`, crypto.HashToken(token), s.now().UTC()).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) Delete(ctx context.Context, token string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE token_hash = $1`, crypto.HashToken(token))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Size(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM revoked_tokens WHERE expires_at > $1`, s.now().UTC()).Scan(&count)
	return count, err
}

func (s *PostgresStore) Cleanup(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, s.now().UTC())
	return err
}

// Close is a no-op: the pool is owned by main and shared with the
// repositories.
func (s *PostgresStore) Close() error {
	return nil
}
