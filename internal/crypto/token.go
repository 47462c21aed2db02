package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken is used wherever a raw token must not be stored: refresh
// sessions and the durable/redis revocation backends.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
