package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mpetrov/pinwall/internal/auth"
	"github.com/mpetrov/pinwall/internal/config"
	"github.com/mpetrov/pinwall/internal/domain"
	"github.com/mpetrov/pinwall/internal/repository"
)

// TOTPSecret is a fixed base32 secret used by MFA fixtures; tests generate
// matching codes with totp.GenerateCode.
const TOTPSecret = "JBSWY3DPEHPK3PXP"

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	name           string
	email          string
	password       string
	role           string
	mfa            bool
	secret         *string
	failedAttempts int
	lockUntil      *time.Time
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		name:     "Test User",
		email:    fmt.Sprintf("user_%s@example.com", uuid.New().String()[:8]),
		password: "testpassword123",
		role:     domain.RoleUser,
	}
}

func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.name = name
	return b
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) WithRole(role string) *UserBuilder {
	b.role = role
	return b
}

// WithMFA enables MFA for the user with the given base32 secret.
func (b *UserBuilder) WithMFA(secret string) *UserBuilder {
	b.mfa = true
	b.secret = &secret
	return b
}

// WithLockout seeds the failed-attempt counter and, optionally, an active lock.
func (b *UserBuilder) WithLockout(attempts int, lockUntil *time.Time) *UserBuilder {
	b.failedAttempts = attempts
	b.lockUntil = lockUntil
	return b
}

// Build creates the user in the repository and returns it with the raw password.
func (b *UserBuilder) Build(t *testing.T, users repository.UserRepository) (*domain.User, string) {
	t.Helper()

	user := &domain.User{
		Name:           &b.name,
		Email:          b.email,
		PasswordHash:   auth.HashPassword(b.password),
		Secret:         b.secret,
		MFA:            b.mfa,
		Role:           b.role,
		Terms:          "accept",
		FailedAttempts: b.failedAttempts,
		LockUntil:      b.lockUntil,
	}

	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// CreateSession stores a session row for userID with the given expiry and
// returns the raw token that maps to it.
func CreateSession(t *testing.T, sessions repository.SessionRepository, userID uint, expiresAt time.Time) string {
	t.Helper()

	token, err := auth.GenerateToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	session := &domain.Session{
		ID:        auth.DeriveSessionID(token),
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	if err := sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return token
}

// TestConfig returns a configuration suitable for testing. Login delay bounds
// are zero so sign-in tests run without sleeping.
func TestConfig() *config.Config {
	return &config.Config{
		Port:          "0",
		Environment:   "test",
		LoginDelayMin: 0,
		LoginDelayMax: 0,
	}
}
