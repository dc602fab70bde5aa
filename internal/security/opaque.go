package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// OpaqueTokenBytes is the entropy of refresh and single-use tokens (256 bits).
const OpaqueTokenBytes = 32

// RandomOpaqueToken returns a new random token, base64url encoded without padding.
// The raw value is handed to the client once and never stored.
func RandomOpaqueToken() (string, error) {
	b := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashOpaqueToken returns a SHA-256 hash of the token string, hex-encoded.
// Used for storing and looking up refresh tokens without storing the raw token.
func HashOpaqueToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// OpaqueTokenHashEqual performs constant-time comparison of the provided token's hash
// with the stored hash. Returns true only if they match.
func OpaqueTokenHashEqual(providedToken, storedHash string) bool {
	providedHash := HashOpaqueToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
