// Package security holds the session token primitives: generation and at-rest hashing.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// SessionTokenBytes is the number of random bytes in a session token (hex-encoded to twice that length).
const SessionTokenBytes = 32

// NewSessionToken returns a fresh opaque session token: 32 random bytes, hex-encoded.
func NewSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns a SHA-256 hash of the session token, hex-encoded.
// Durable stores key sessions on this value so the raw token never reaches them.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual performs constant-time comparison of the provided token's hash
// with the stored hash. Empty inputs never match.
func TokenHashEqual(providedToken, storedHash string) bool {
	if providedToken == "" || storedHash == "" {
		return false
	}
	providedHash := HashToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
