// Package auth holds the credential primitives of the sign-in core: opaque
// session tokens, password hashing, the lockout policy and TOTP validation.
// Everything here is pure (aside from the randomness source) and store-free;
// persistence and orchestration live in internal/service.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of a session token. 20 bytes (160 bits) makes a
// collision between two generated tokens practically impossible.
const tokenBytes = 20

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateToken returns a new high-entropy session token in URL-safe base32.
// The raw token is the client-held secret and must never be persisted.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return tokenEncoding.EncodeToString(buf), nil
}

// DeriveSessionID maps a token to the identifier stored server-side.
// The derivation is one-way: a leaked sessions table does not yield
// usable tokens.
func DeriveSessionID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
