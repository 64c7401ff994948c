package repository

import (
	"context"
	"time"

	"github.com/mpetrov/pinwall/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uint) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error

	// RecordFailedAttempt increments the user's failed-attempt counter and,
	// when the incremented counter reaches maxAttempts, sets lock_until to
	// lockUntil. The increment and the threshold check must execute as one
	// atomic store operation so concurrent attempts cannot both read the
	// pre-increment counter and escape the lock.
	RecordFailedAttempt(ctx context.Context, userID uint, maxAttempts int, lockUntil time.Time) error

	// ResetLockout clears the failed-attempt counter and any lock.
	ResetLockout(ctx context.Context, userID uint) error

	// AdminExists reports whether any admin-role user has been created.
	AdminExists(ctx context.Context) (bool, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID uint) error
}

type SettingsRepository interface {
	Get(ctx context.Context) (*domain.Settings, error)
}

type Repositories struct {
	User     UserRepository
	Session  SessionRepository
	Settings SettingsRepository
}
