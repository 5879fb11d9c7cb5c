package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SessionKey derives the Redis key for a bearer token. Tokens are never
// stored verbatim; only their digest identifies the session.
func SessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}
