// Package revocation records tokens that must no longer be honored,
// independent of their cryptographic validity. Bootstrap selects redis
// when REDIS_ADDR is set and postgres otherwise; the in-memory store
// serves tests and single-process setups.
package revocation

import (
	"context"
	"time"
)

// Store is the revocation record contract. After a successful Add, Has
// must report true until at least expiresAt. After that the answer is
// unspecified, but Cleanup must eventually reclaim expired entries.
//
// A backend that cannot answer Has returns an error; callers treat that
// as revoked (fail-closed).
type Store interface {
	Add(ctx context.Context, token string, expiresAt time.Time) error
	Has(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) (bool, error)
	Size(ctx context.Context) (int, error)
	Cleanup(ctx context.Context) error
	Close() error
}
