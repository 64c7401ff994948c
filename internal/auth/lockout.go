package auth

import "time"

const (
	// MaxFailedAttempts is the number of consecutive wrong-password attempts
	// after which the account is temporarily locked.
	MaxFailedAttempts = 5

	// LockDuration is how long a lock stays in force once triggered.
	LockDuration = 15 * time.Minute
)

// IsLocked reports whether an account is inside an active lockout window.
func IsLocked(lockUntil *time.Time, now time.Time) bool {
	return lockUntil != nil && now.Before(*lockUntil)
}

// NextLockout computes the counter state after one more failed attempt.
// The returned lockUntil is nil until the counter reaches MaxFailedAttempts.
// Callers must persist this transition atomically with the increment; the
// repository layer performs the equivalent computation in a single
// conditional UPDATE so concurrent attempts cannot slip past the threshold.
func NextLockout(failedAttempts int, now time.Time) (attempts int, lockUntil *time.Time) {
	attempts = failedAttempts + 1
	if attempts >= MaxFailedAttempts {
		t := now.Add(LockDuration)
		lockUntil = &t
	}
	return attempts, lockUntil
}
