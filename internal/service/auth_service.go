package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/mpetrov/pinwall/internal/auth"
	"github.com/mpetrov/pinwall/internal/config"
	"github.com/mpetrov/pinwall/internal/domain"
	"github.com/mpetrov/pinwall/internal/repository"
	"github.com/rs/zerolog"
)

// User-facing copy. Unknown email and wrong password share one message on
// purpose: the response must not reveal which of the two was wrong. The
// locked message is the single deliberate disclosure, it does not reveal
// whether the password was correct.
const (
	MsgInvalidCredentials = "Invalid email or password."
	MsgAccountLocked      = "Your account is temporarily locked due to multiple failed login attempts. Please try again later."
	MsgSignInFailed       = "An error occurred while signing in to your account."
	MsgOTPInvalid         = "OTP is not valid or is expired."
	MsgOTPFailed          = "An error occurred while validating your OTP."
	MsgUserExists         = "User already exists."
	MsgRegisterFailed     = "An error occurred while creating your account."
	MsgInitFailed         = "An error occurred while creating your admin account."
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CredentialCarrier is how the flow reads and writes the client-held session
// token without depending on a concrete transport. The HTTP layer supplies a
// cookie-backed implementation.
type CredentialCarrier interface {
	Token() (string, bool)
	SetToken(token string, expiresAt time.Time)
	ClearToken()
}

type AuthService struct {
	users    repository.UserRepository
	settings repository.SettingsRepository
	sessions *SessionService
	cfg      *config.Config
	log      zerolog.Logger
}

func NewAuthService(repos *repository.Repositories, sessions *SessionService, cfg *config.Config, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    repos.User,
		settings: repos.Settings,
		sessions: sessions,
		cfg:      cfg,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

type SignInInput struct {
	Email    string
	Password string
}

// SignInResult is returned for every sign-in attempt; the flow never lets an
// internal failure escape as anything but generic copy.
type SignInResult struct {
	Success        bool                `json:"success"`
	RedirectTarget string              `json:"redirect,omitempty"`
	FieldErrors    map[string][]string `json:"errors,omitempty"`
	Message        string              `json:"message,omitempty"`
}

// SignIn runs the credential step of the login state machine. On success the
// caller is either fully authenticated (session issued, cookie set via
// carrier) or redirected to the MFA challenge for the user, depending on the
// user's MFA flag and the site-wide MFA setting.
func (s *AuthService) SignIn(ctx context.Context, carrier CredentialCarrier, input SignInInput) SignInResult {
	if fieldErrors := validateSignIn(input); len(fieldErrors) > 0 {
		return SignInResult{FieldErrors: fieldErrors}
	}

	// Flat response-time jitter before any store access, so the timing of a
	// rejection does not distinguish unknown emails from known ones.
	s.randomDelay(ctx)

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Warn().Str("email", input.Email).Msg("sign-in attempt for unknown email")
			return SignInResult{Message: MsgInvalidCredentials}
		}
		s.log.Error().Err(err).Msg("sign-in: user lookup failed")
		return SignInResult{Message: MsgSignInFailed}
	}

	now := time.Now()
	if auth.IsLocked(user.LockUntil, now) {
		s.log.Warn().Str("email", input.Email).Time("lock_until", *user.LockUntil).Msg("sign-in attempt on locked account")
		return SignInResult{Message: MsgAccountLocked}
	}

	if !auth.VerifyPassword(user.PasswordHash, input.Password) {
		if err := s.users.RecordFailedAttempt(ctx, user.ID, auth.MaxFailedAttempts, now.Add(auth.LockDuration)); err != nil {
			s.log.Error().Err(err).Msg("sign-in: recording failed attempt")
			return SignInResult{Message: MsgSignInFailed}
		}
		s.log.Warn().Str("email", input.Email).Msg("sign-in attempt with wrong password")
		return SignInResult{Message: MsgInvalidCredentials}
	}

	if err := s.users.ResetLockout(ctx, user.ID); err != nil {
		s.log.Error().Err(err).Msg("sign-in: resetting lockout state")
		return SignInResult{Message: MsgSignInFailed}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("sign-in: loading settings")
		return SignInResult{Message: MsgSignInFailed}
	}

	if user.MFA && settings.MFA {
		// No session yet; the challenge step issues it.
		return SignInResult{
			Success:        true,
			RedirectTarget: fmt.Sprintf("/login/otp/%d", user.ID),
		}
	}

	if err := s.issueSession(ctx, carrier, user.ID); err != nil {
		s.log.Error().Err(err).Msg("sign-in: issuing session")
		return SignInResult{Message: MsgSignInFailed}
	}

	return SignInResult{Success: true, RedirectTarget: "/"}
}

type MFAInput struct {
	UserID uint
	Code   string
}

type MFAResult struct {
	Success        bool                `json:"success"`
	RedirectTarget string              `json:"redirect,omitempty"`
	FieldErrors    map[string][]string `json:"errors,omitempty"`
	Message        string              `json:"message,omitempty"`
}

// CompleteMFA runs the challenge step for a user who already passed the
// credential check. A wrong code does not touch the lockout counters; the
// password step is the only one under lockout in this design.
func (s *AuthService) CompleteMFA(ctx context.Context, carrier CredentialCarrier, input MFAInput) MFAResult {
	if fieldErrors := validateMFA(input); len(fieldErrors) > 0 {
		return MFAResult{FieldErrors: fieldErrors}
	}

	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		// Unknown user and store failure get the same generic copy.
		s.log.Error().Err(err).Uint("user", input.UserID).Msg("mfa: user lookup failed")
		return MFAResult{Message: MsgOTPFailed}
	}

	if user.Secret == nil || *user.Secret == "" {
		s.log.Error().Uint("user", input.UserID).Msg("mfa: user has no secret")
		return MFAResult{Message: MsgOTPFailed}
	}

	if !auth.ValidateTOTP(*user.Secret, input.Code) {
		s.log.Warn().Uint("user", input.UserID).Msg("mfa: invalid code")
		return MFAResult{Message: MsgOTPInvalid}
	}

	if err := s.issueSession(ctx, carrier, user.ID); err != nil {
		s.log.Error().Err(err).Msg("mfa: issuing session")
		return MFAResult{Message: MsgOTPFailed}
	}

	return MFAResult{Success: true, RedirectTarget: "/"}
}

// CurrentSession resolves the caller's session from an explicit token or,
// when token is empty, from the carrier. An absent or dead token yields an
// empty result, not an error; store failures are errors so a timeout can
// never masquerade as "not authenticated".
func (s *AuthService) CurrentSession(ctx context.Context, carrier CredentialCarrier, token string) (SessionValidation, error) {
	if token == "" && carrier != nil {
		token, _ = carrier.Token()
	}
	if token == "" {
		return SessionValidation{}, nil
	}
	return s.sessions.ValidateToken(ctx, token)
}

// InvalidateSession removes a session row; safe to call for ids that are
// already gone.
func (s *AuthService) InvalidateSession(ctx context.Context, sessionID string) error {
	return s.sessions.Invalidate(ctx, sessionID)
}

// Logout invalidates the carrier's session, if any, and clears the carrier.
func (s *AuthService) Logout(ctx context.Context, carrier CredentialCarrier) error {
	defer carrier.ClearToken()
	token, ok := carrier.Token()
	if !ok || token == "" {
		return nil
	}
	return s.sessions.Invalidate(ctx, auth.DeriveSessionID(token))
}

// IsAdminBootstrapped reports whether the first-run admin account exists. The
// gateway forces every request into the bootstrap flow until it does.
func (s *AuthService) IsAdminBootstrapped(ctx context.Context) (bool, error) {
	return s.users.AdminExists(ctx)
}

// IsRegistrationAllowed reports the site-wide self-registration flag.
func (s *AuthService) IsRegistrationAllowed(ctx context.Context) (bool, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	return settings.AllowReg, nil
}

func (s *AuthService) issueSession(ctx context.Context, carrier CredentialCarrier, userID uint) error {
	token, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	session, err := s.sessions.Create(ctx, token, userID)
	if err != nil {
		return err
	}
	if carrier != nil {
		carrier.SetToken(token, session.ExpiresAt)
	}
	return nil
}

// randomDelay sleeps a cryptographically random duration between the
// configured bounds, honoring ctx cancellation.
func (s *AuthService) randomDelay(ctx context.Context) {
	delay := s.cfg.LoginDelayMin
	if span := s.cfg.LoginDelayMax - s.cfg.LoginDelayMin; span > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
		if err == nil {
			delay += time.Duration(n.Int64())
		}
	}
	if delay <= 0 {
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func validateSignIn(input SignInInput) map[string][]string {
	fieldErrors := make(map[string][]string)
	if !emailPattern.MatchString(input.Email) {
		fieldErrors["email"] = append(fieldErrors["email"], "Please enter a valid email address.")
	}
	if input.Password == "" {
		fieldErrors["password"] = append(fieldErrors["password"], "Password is required.")
	}
	return fieldErrors
}

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

func validateMFA(input MFAInput) map[string][]string {
	fieldErrors := make(map[string][]string)
	if input.UserID == 0 {
		fieldErrors["id"] = append(fieldErrors["id"], "User id is required.")
	}
	if !otpPattern.MatchString(input.Code) {
		fieldErrors["password"] = append(fieldErrors["password"], "Code must be 6 digits.")
	}
	return fieldErrors
}
