package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/balejosg/openpath/internal/revocation"
)

func newTestIssuer(t *testing.T, store revocation.Store) *Issuer {
	t.Helper()
	if store == nil {
		mem := revocation.NewMemoryStore(0)
		t.Cleanup(func() { mem.Close() })
		store = mem
	}
	return NewIssuer("secret", "test-issuer", time.Minute, time.Hour, 24*time.Hour, store)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	roles := []RoleClaim{
		{Role: RoleTeacher, Groups: []string{"g-1", "g-2"}},
		{Role: RoleStudent},
	}
	token, err := issuer.Issue(Claims{UserID: "user-1", FirstName: "Ana", Roles: roles}, KindAccess)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	claims, err := issuer.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Kind != KindAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[0].Role != RoleTeacher || len(claims.Roles[0].Groups) != 2 {
		t.Fatalf("role snapshot not preserved: %+v", claims.Roles)
	}
}

func TestRefreshTokenOutlivesAccess(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	access, err := issuer.Issue(Claims{UserID: "user-1"}, KindAccess)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	refresh, err := issuer.Issue(Claims{UserID: "user-1"}, KindRefresh)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	accessClaims, err := issuer.Verify(context.Background(), access)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	refreshClaims, err := issuer.Verify(context.Background(), refresh)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if refreshClaims.Kind != KindRefresh {
		t.Fatalf("expected refresh kind, got %s", refreshClaims.Kind)
	}
	if !refreshClaims.ExpiresAt.Time.After(accessClaims.ExpiresAt.Time) {
		t.Fatalf("expected refresh token to expire after access token")
	}
}

func TestVerifyRejectsRevokedToken(t *testing.T) {
	store := revocation.NewMemoryStore(0)
	defer store.Close()
	issuer := newTestIssuer(t, store)
	ctx := context.Background()

	token, err := issuer.Issue(Claims{UserID: "user-1"}, KindAccess)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if _, err := issuer.Verify(ctx, token); err != nil {
		t.Fatalf("verify error before revoke: %v", err)
	}

	if err := issuer.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke error: %v", err)
	}

	// Signature and expiry are still valid; only the revocation record
	// rejects it.
	if _, err := issuer.Verify(ctx, token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestRevokeRecordUsesTokenExpiry(t *testing.T) {
	store := revocation.NewMemoryStore(0)
	defer store.Close()
	issuer := newTestIssuer(t, store)
	ctx := context.Background()

	token, err := issuer.Issue(Claims{UserID: "user-1"}, KindRefresh)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if err := issuer.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke error: %v", err)
	}
	if has, _ := store.Has(ctx, token); !has {
		t.Fatalf("expected record in store")
	}

	// Garbage still gets a record, with the conservative default window.
	if err := issuer.Revoke(ctx, "not-a-jwt"); err != nil {
		t.Fatalf("revoke error: %v", err)
	}
	if has, _ := store.Has(ctx, "not-a-jwt"); !has {
		t.Fatalf("expected record for undecodable token")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	store := revocation.NewMemoryStore(0)
	defer store.Close()
	issuer := newTestIssuer(t, store)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, err := issuer.Issue(Claims{UserID: "user-1"}, KindAccess)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Verify(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	other := newTestIssuer(t, nil)
	other.secret = "other-secret"
	token, err := other.Issue(Claims{UserID: "user-1"}, KindAccess)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	if _, err := issuer.Verify(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := issuer.Verify(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

type brokenStore struct{}

func (brokenStore) Add(context.Context, string, time.Time) error { return errors.New("down") }
func (brokenStore) Has(context.Context, string) (bool, error)    { return false, errors.New("down") }
func (brokenStore) Delete(context.Context, string) (bool, error) { return false, errors.New("down") }
func (brokenStore) Size(context.Context) (int, error)            { return 0, errors.New("down") }
func (brokenStore) Cleanup(context.Context) error                { return errors.New("down") }
func (brokenStore) Close() error                                 { return nil }

func TestVerifyFailsClosedWhenStoreUnavailable(t *testing.T) {
	issuer := newTestIssuer(t, brokenStore{})

	token, err := issuer.Issue(Claims{UserID: "user-1"}, KindAccess)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if _, err := issuer.Verify(context.Background(), token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected fail-closed ErrTokenRevoked, got %v", err)
	}
}
