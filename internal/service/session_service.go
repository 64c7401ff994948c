package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mpetrov/pinwall/internal/auth"
	"github.com/mpetrov/pinwall/internal/domain"
	"github.com/mpetrov/pinwall/internal/repository"
	"github.com/rs/zerolog"
)

const (
	// SessionTTL is the lifetime of a session measured from issuance or from
	// the most recent extension.
	SessionTTL = 30 * 24 * time.Hour

	// SessionRenewalWindow is the trailing portion of a session's life during
	// which any validation slides the expiry back out to a full SessionTTL.
	// Active sessions therefore never expire; idle ones do.
	SessionRenewalWindow = 15 * 24 * time.Hour
)

// SessionValidation is the result of resolving a token. Both fields are nil
// when the token does not map to a live session; that is a valid terminal
// state, not an error.
type SessionValidation struct {
	Session *domain.Session
	User    *domain.User
}

type SessionService struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	log      zerolog.Logger
}

func NewSessionService(sessions repository.SessionRepository, users repository.UserRepository, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		log:      log.With().Str("component", "session").Logger(),
	}
}

// Create persists a new session for userID derived from token. A store
// failure, including the astronomically unlikely duplicate id, is surfaced
// rather than silently overwritten.
func (s *SessionService) Create(ctx context.Context, token string, userID uint) (*domain.Session, error) {
	session := &domain.Session{
		ID:        auth.DeriveSessionID(token),
		UserID:    userID,
		ExpiresAt: time.Now().Add(SessionTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	return session, nil
}

// ValidateToken resolves a token to its session and owning user. Expired
// sessions are deleted on first access instead of by a background sweep.
// A session inside the renewal window has its expiry extended to a full
// SessionTTL from now; the write is last-writer-wins, a concurrent double
// extension re-writes an equivalent timestamp.
//
// Results are memoized per request when a cache has been installed on ctx
// (see WithSessionCache), since the surrounding middleware and handlers may
// resolve the same token several times per request.
func (s *SessionService) ValidateToken(ctx context.Context, token string) (SessionValidation, error) {
	if cache, ok := sessionCacheFrom(ctx); ok {
		return cache.resolve(token, func() (SessionValidation, error) {
			return s.validateToken(ctx, token)
		})
	}
	return s.validateToken(ctx, token)
}

func (s *SessionService) validateToken(ctx context.Context, token string) (SessionValidation, error) {
	sessionID := auth.DeriveSessionID(token)

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return SessionValidation{}, nil
		}
		return SessionValidation{}, fmt.Errorf("look up session: %w", err)
	}

	now := time.Now()
	if !now.Before(session.ExpiresAt) {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return SessionValidation{}, fmt.Errorf("delete expired session: %w", err)
		}
		return SessionValidation{}, nil
	}

	if !now.Before(session.ExpiresAt.Add(-SessionRenewalWindow)) {
		session.ExpiresAt = now.Add(SessionTTL)
		if err := s.sessions.UpdateExpiry(ctx, sessionID, session.ExpiresAt); err != nil {
			return SessionValidation{}, fmt.Errorf("extend session: %w", err)
		}
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Orphaned row; the owning user is gone.
			s.log.Warn().Str("session", sessionID).Uint("user", session.UserID).Msg("session without owning user")
			_ = s.sessions.Delete(ctx, sessionID)
			return SessionValidation{}, nil
		}
		return SessionValidation{}, fmt.Errorf("look up session user: %w", err)
	}

	return SessionValidation{Session: session, User: user}, nil
}

// Invalidate deletes a session unconditionally. Deleting an id that does not
// exist is not an error; the call is idempotent.
func (s *SessionService) Invalidate(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// sessionCache memoizes token resolution within one logical request. It is
// installed on the request context by middleware, never stored globally, so
// nothing leaks across requests.
type sessionCache struct {
	mu      sync.Mutex
	results map[string]SessionValidation
	errs    map[string]error
}

type sessionCacheKey struct{}

// WithSessionCache returns a ctx carrying a fresh per-request session cache.
func WithSessionCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionCacheKey{}, &sessionCache{
		results: make(map[string]SessionValidation),
		errs:    make(map[string]error),
	})
}

func sessionCacheFrom(ctx context.Context) (*sessionCache, bool) {
	cache, ok := ctx.Value(sessionCacheKey{}).(*sessionCache)
	return cache, ok
}

func (c *sessionCache) resolve(token string, lookup func() (SessionValidation, error)) (SessionValidation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result, ok := c.results[token]; ok {
		return result, c.errs[token]
	}

	result, err := lookup()
	c.results[token] = result
	c.errs[token] = err
	return result, err
}
