package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/balejosg/openpath/internal/revocation"
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Verification failures for internal logging. The HTTP layer collapses all
// of them into a single opaque 401 so callers cannot probe which check
// rejected their token.
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)

type RoleClaim struct {
	Role   string   `json:"role"`
	Groups []string `json:"groups,omitempty"`
}

type Claims struct {
	UserID    string      `json:"user_id"`
	FirstName string      `json:"first_name,omitempty"`
	LastName  string      `json:"last_name,omitempty"`
	Roles     []RoleClaim `json:"roles"`
	Kind      string      `json:"kind"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens, consulting the revocation
// store before any cryptographic check.
type Issuer struct {
	secret           string
	issuer           string
	accessTTL        time.Duration
	refreshTTL       time.Duration
	defaultRevokeTTL time.Duration
	revoked          revocation.Store
	now              func() time.Time
}

func NewIssuer(secret, issuer string, accessTTL, refreshTTL, defaultRevokeTTL time.Duration, revoked revocation.Store) *Issuer {
	return &Issuer{
		secret:           secret,
		issuer:           issuer,
		accessTTL:        accessTTL,
		refreshTTL:       refreshTTL,
		defaultRevokeTTL: defaultRevokeTTL,
		revoked:          revoked,
		now:              time.Now,
	}
}

// Issue signs claims as a token of the given kind. The caller builds the
// role snapshot once and passes the same claims for both the access and
// refresh token of a login, so the pair never carries interleaved role
// state.
func (i *Issuer) Issue(claims Claims, kind string) (string, error) {
	ttl := i.accessTTL
	if kind == KindRefresh {
		ttl = i.refreshTTL
	}
	now := i.now().UTC()
	claims.Kind = kind
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(i.secret))
}

// Verify checks the revocation store first: a revoked token fails without
// any cryptographic work, and a store that cannot answer fails closed.
// Only then are signature, issuer and expiry verified.
func (i *Issuer) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	revoked, err := i.revoked.Has(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: revocation check failed: %v", ErrTokenRevoked, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(i.secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(i.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Revoke records the token until its own exp claim when decodable, else
// for a conservative default window, so the record never dies before the
// token would have.
func (i *Issuer) Revoke(ctx context.Context, tokenString string) error {
	expiresAt := i.now().Add(i.defaultRevokeTTL)
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return i.revoked.Add(ctx, tokenString, expiresAt)
}
