package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// Password hashing is deliberately deterministic: the stored value is compared
// by equality, so the same plaintext must always produce the same hash. A
// fixed application-level salt keeps outputs distinct from plain PBKDF2
// rainbow tables while preserving determinism.
const (
	passwordIterations = 100_000
	passwordKeyLen     = 32
)

var passwordSalt = []byte("pinwall.credential.v1")

// HashPassword derives the stored form of a plaintext password.
func HashPassword(plaintext string) string {
	key := pbkdf2.Key([]byte(plaintext), passwordSalt, passwordIterations, passwordKeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// VerifyPassword reports whether candidate hashes to storedHash. The
// comparison is constant-time so a mismatch position cannot be measured.
func VerifyPassword(storedHash, candidate string) bool {
	candidateHash := HashPassword(candidate)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(candidateHash)) == 1
}
