package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/mpetrov/pinwall/internal/domain"
	"github.com/mpetrov/pinwall/internal/repository"
)

// In-memory repository fakes for service-level tests. They honor the same
// contracts as the postgres implementations, including the atomicity of
// RecordFailedAttempt (guarded by the store mutex, like the single UPDATE
// statement in postgres).

type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*domain.User

	// FailWith, when set, is returned by every method. Used to exercise
	// internal-error paths.
	FailWith error
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[uint]*domain.User)}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return domain.ErrUserExists
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	user.UpdatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *MemoryUserRepository) RecordFailedAttempt(ctx context.Context, userID uint, maxAttempts int, lockUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	user, ok := r.users[userID]
	if !ok {
		return nil
	}
	user.FailedAttempts++
	if user.FailedAttempts >= maxAttempts {
		until := lockUntil
		user.LockUntil = &until
	} else {
		user.LockUntil = nil
	}
	return nil
}

func (r *MemoryUserRepository) ResetLockout(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	if user, ok := r.users[userID]; ok {
		user.FailedAttempts = 0
		user.LockUntil = nil
	}
	return nil
}

func (r *MemoryUserRepository) AdminExists(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return false, r.FailWith
	}
	for _, user := range r.users {
		if user.Role == domain.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	// GetCalls counts GetByID invocations; the per-request memoization tests
	// assert on it.
	GetCalls int

	FailWith error
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*domain.Session)}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	if _, ok := r.sessions[session.ID]; ok {
		return domain.ErrDuplicateSession
	}
	session.CreatedAt = time.Now()
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.GetCalls++
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *session
	return &clone, nil
}

func (r *MemorySessionRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	if session, ok := r.sessions[id]; ok {
		session.ExpiresAt = expiresAt
	}
	return nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepository) DeleteByUserID(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	for id, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

// Len reports the number of stored sessions.
func (r *MemorySessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Get returns a stored session without counting as a lookup.
func (r *MemorySessionRepository) Get(id string) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	clone := *session
	return &clone, true
}

type MemorySettingsRepository struct {
	mu       sync.Mutex
	Settings domain.Settings
	FailWith error
}

func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{}
}

func (r *MemorySettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	clone := r.Settings
	return &clone, nil
}

// NewMemoryRepositories bundles the fakes in the shape services expect.
func NewMemoryRepositories() (*repository.Repositories, *MemoryUserRepository, *MemorySessionRepository, *MemorySettingsRepository) {
	users := NewMemoryUserRepository()
	sessions := NewMemorySessionRepository()
	settings := NewMemorySettingsRepository()
	return &repository.Repositories{
		User:     users,
		Session:  sessions,
		Settings: settings,
	}, users, sessions, settings
}
