package auth

import (
	"github.com/pquerna/otp/totp"
)

// ValidateTOTP checks a 6-digit time-based one-time code against a user's
// base32 secret. The library applies the standard 30-second step with a
// one-step skew window, so small clock drift on the client is tolerated.
// Malformed or non-numeric codes simply fail validation.
func ValidateTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}
