package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mpetrov/pinwall/internal/auth"
	"github.com/mpetrov/pinwall/internal/repository"
	"github.com/mpetrov/pinwall/internal/service"
	"github.com/mpetrov/pinwall/internal/testutil"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCarrier is an in-memory CredentialCarrier.
type testCarrier struct {
	token   string
	expires time.Time
	cleared bool
}

func (c *testCarrier) Token() (string, bool) {
	return c.token, c.token != ""
}

func (c *testCarrier) SetToken(token string, expiresAt time.Time) {
	c.token = token
	c.expires = expiresAt
}

func (c *testCarrier) ClearToken() {
	c.token = ""
	c.cleared = true
}

type authFixture struct {
	svc      *service.AuthService
	sessions *service.SessionService
	repos    *repository.Repositories
	users    *testutil.MemoryUserRepository
	sessRepo *testutil.MemorySessionRepository
	settings *testutil.MemorySettingsRepository
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	repos, users, sessRepo, settings := testutil.NewMemoryRepositories()
	services := service.NewServices(repos, testutil.TestConfig(), zerolog.Nop())
	return &authFixture{
		svc:      services.Auth,
		sessions: services.Session,
		repos:    repos,
		users:    users,
		sessRepo: sessRepo,
		settings: settings,
	}
}

func TestSignIn_Validation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input service.SignInInput
		field string
	}{
		{name: "malformed email", input: service.SignInInput{Email: "not-an-email", Password: "password123"}, field: "email"},
		{name: "empty email", input: service.SignInInput{Email: "", Password: "password123"}, field: "email"},
		{name: "empty password", input: service.SignInInput{Email: "a@x.com", Password: ""}, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.svc.SignIn(ctx, &testCarrier{}, tt.input)
			assert.False(t, result.Success)
			assert.Contains(t, result.FieldErrors, tt.field)
		})
	}
}

func TestSignIn_Success(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, password := testutil.NewUserBuilder().WithEmail("a@x.com").Build(t, f.users)

	carrier := &testCarrier{}
	before := time.Now()
	result := f.svc.SignIn(ctx, carrier, service.SignInInput{Email: "a@x.com", Password: password})

	assert.True(t, result.Success)
	assert.Equal(t, "/", result.RedirectTarget)
	assert.Empty(t, result.Message)

	// Exactly one session was issued, expiring ~30 days out, and the carrier
	// holds a token that maps to it.
	require.Equal(t, 1, f.sessRepo.Len())
	require.NotEmpty(t, carrier.token)
	stored, ok := f.sessRepo.Get(auth.DeriveSessionID(carrier.token))
	require.True(t, ok)
	assert.Equal(t, user.ID, stored.UserID)
	assert.WithinDuration(t, before.Add(service.SessionTTL), stored.ExpiresAt, 5*time.Second)
	assert.Equal(t, stored.ExpiresAt, carrier.expires)
}

func TestSignIn_UnknownEmailAndWrongPasswordShareMessage(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, _ = testutil.NewUserBuilder().WithEmail("known@x.com").Build(t, f.users)

	unknown := f.svc.SignIn(ctx, &testCarrier{}, service.SignInInput{Email: "unknown@x.com", Password: "whatever123"})
	wrongPw := f.svc.SignIn(ctx, &testCarrier{}, service.SignInInput{Email: "known@x.com", Password: "wrong-password"})

	assert.False(t, unknown.Success)
	assert.False(t, wrongPw.Success)
	assert.Equal(t, service.MsgInvalidCredentials, unknown.Message)
	assert.Equal(t, wrongPw.Message, unknown.Message, "rejections must not reveal which field was wrong")
	assert.Equal(t, 0, f.sessRepo.Len())
}

func TestSignIn_LockoutAfterMaxFailedAttempts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, password := testutil.NewUserBuilder().WithEmail("b@x.com").Build(t, f.users)

	// Five consecutive wrong passwords.
	for i := 0; i < auth.MaxFailedAttempts; i++ {
		result := f.svc.SignIn(ctx, &testCarrier{}, service.SignInInput{Email: "b@x.com", Password: "wrong-password"})
		assert.Equal(t, service.MsgInvalidCredentials, result.Message, "attempt %d", i+1)
	}

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.MaxFailedAttempts, stored.FailedAttempts)
	require.NotNil(t, stored.LockUntil)

	// The sixth attempt with the correct password still sees the lock.
	result := f.svc.SignIn(ctx, &testCarrier{}, service.SignInInput{Email: "b@x.com", Password: password})
	assert.False(t, result.Success)
	assert.Equal(t, service.MsgAccountLocked, result.Message)
	assert.Equal(t, 0, f.sessRepo.Len())
}

func TestSignIn_ElapsedLockAllowsLoginAndResetsCounter(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	user, password := testutil.NewUserBuilder().
		WithEmail("c@x.com").
		WithLockout(auth.MaxFailedAttempts, &past).
		Build(t, f.users)

	result := f.svc.SignIn(ctx, &testCarrier{}, service.SignInInput{Email: "c@x.com", Password: password})
	assert.True(t, result.Success)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedAttempts)
	assert.Nil(t, stored.LockUntil)
}

func TestSignIn_BelowThresholdLeavesAccountUnlocked(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, password := testutil.NewUserBuilder().WithEmail("d@x.com").Build(t, f.users)

	for i := 0; i < auth.MaxFailedAttempts-1; i++ {
		f.svc.SignIn(ctx, &testCarrier{}, service.SignInInput{Email: "d@x.com", Password: "wrong-password"})
	}

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LockUntil)

	result := f.svc.SignIn(ctx, &testCarrier{}, service.SignInInput{Email: "d@x.com", Password: password})
	assert.True(t, result.Success)
}

func TestSignIn_MFAPending(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.settings.Settings.MFA = true
	user, password := testutil.NewUserBuilder().
		WithEmail("mfa@x.com").
		WithMFA(testutil.TOTPSecret).
		Build(t, f.users)

	carrier := &testCarrier{}
	result := f.svc.SignIn(ctx, carrier, service.SignInInput{Email: "mfa@x.com", Password: password})

	assert.True(t, result.Success)
	assert.Equal(t, fmt.Sprintf("/login/otp/%d", user.ID), result.RedirectTarget)

	// No session until the challenge step completes.
	assert.Equal(t, 0, f.sessRepo.Len())
	assert.Empty(t, carrier.token)
}

func TestSignIn_MFADisabledGlobally(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	// User flag on, site flag off: sign-in issues a session directly.
	_, password := testutil.NewUserBuilder().
		WithEmail("mfa-off@x.com").
		WithMFA(testutil.TOTPSecret).
		Build(t, f.users)

	result := f.svc.SignIn(ctx, &testCarrier{}, service.SignInInput{Email: "mfa-off@x.com", Password: password})
	assert.True(t, result.Success)
	assert.Equal(t, "/", result.RedirectTarget)
	assert.Equal(t, 1, f.sessRepo.Len())
}

func TestSignIn_StoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.users.FailWith = errors.New("connection refused")

	result := f.svc.SignIn(ctx, &testCarrier{}, service.SignInInput{Email: "a@x.com", Password: "password123"})
	assert.False(t, result.Success)
	assert.Equal(t, service.MsgSignInFailed, result.Message, "internal detail must not leak")
}

func TestCompleteMFA(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.settings.Settings.MFA = true
	user, _ := testutil.NewUserBuilder().
		WithEmail("otp@x.com").
		WithMFA(testutil.TOTPSecret).
		Build(t, f.users)

	t.Run("valid code issues session", func(t *testing.T) {
		code, err := totp.GenerateCode(testutil.TOTPSecret, time.Now())
		require.NoError(t, err)

		carrier := &testCarrier{}
		result := f.svc.CompleteMFA(ctx, carrier, service.MFAInput{UserID: user.ID, Code: code})

		assert.True(t, result.Success)
		assert.Equal(t, "/", result.RedirectTarget)
		require.NotEmpty(t, carrier.token)
		_, ok := f.sessRepo.Get(auth.DeriveSessionID(carrier.token))
		assert.True(t, ok)
	})

	t.Run("wrong code leaves lockout untouched", func(t *testing.T) {
		result := f.svc.CompleteMFA(ctx, &testCarrier{}, service.MFAInput{UserID: user.ID, Code: "000000"})
		assert.False(t, result.Success)
		assert.Equal(t, service.MsgOTPInvalid, result.Message)

		stored, err := f.users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.FailedAttempts)
		assert.Nil(t, stored.LockUntil)
	})

	t.Run("malformed code", func(t *testing.T) {
		result := f.svc.CompleteMFA(ctx, &testCarrier{}, service.MFAInput{UserID: user.ID, Code: "abc"})
		assert.False(t, result.Success)
		assert.Contains(t, result.FieldErrors, "password")
	})

	t.Run("unknown user gets generic copy", func(t *testing.T) {
		result := f.svc.CompleteMFA(ctx, &testCarrier{}, service.MFAInput{UserID: 9999, Code: "123456"})
		assert.False(t, result.Success)
		assert.Equal(t, service.MsgOTPFailed, result.Message)
	})

	t.Run("user without secret gets generic copy", func(t *testing.T) {
		plain, _ := testutil.NewUserBuilder().WithEmail("nosecret@x.com").Build(t, f.users)
		result := f.svc.CompleteMFA(ctx, &testCarrier{}, service.MFAInput{UserID: plain.ID, Code: "123456"})
		assert.False(t, result.Success)
		assert.Equal(t, service.MsgOTPFailed, result.Message)
	})
}

func TestCurrentSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, f.users)

	t.Run("no token anywhere", func(t *testing.T) {
		result, err := f.svc.CurrentSession(ctx, &testCarrier{}, "")
		require.NoError(t, err)
		assert.Nil(t, result.Session)
		assert.Nil(t, result.User)
	})

	t.Run("explicit token wins", func(t *testing.T) {
		token := testutil.CreateSession(t, f.repos.Session, user.ID, time.Now().Add(service.SessionTTL))

		result, err := f.svc.CurrentSession(ctx, &testCarrier{}, token)
		require.NoError(t, err)
		require.NotNil(t, result.User)
		assert.Equal(t, user.ID, result.User.ID)
	})

	t.Run("token from carrier", func(t *testing.T) {
		token := testutil.CreateSession(t, f.repos.Session, user.ID, time.Now().Add(service.SessionTTL))

		result, err := f.svc.CurrentSession(ctx, &testCarrier{token: token}, "")
		require.NoError(t, err)
		require.NotNil(t, result.User)
		assert.Equal(t, user.ID, result.User.ID)
	})

	t.Run("expired token yields empty result and removes the row", func(t *testing.T) {
		token := testutil.CreateSession(t, f.repos.Session, user.ID, time.Now().Add(-time.Hour))

		result, err := f.svc.CurrentSession(ctx, &testCarrier{}, token)
		require.NoError(t, err)
		assert.Nil(t, result.Session)
		assert.Nil(t, result.User)

		_, ok := f.sessRepo.Get(auth.DeriveSessionID(token))
		assert.False(t, ok)
	})
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, f.users)
	token := testutil.CreateSession(t, f.repos.Session, user.ID, time.Now().Add(service.SessionTTL))

	carrier := &testCarrier{token: token}
	require.NoError(t, f.svc.Logout(ctx, carrier))

	assert.True(t, carrier.cleared)
	_, ok := f.sessRepo.Get(auth.DeriveSessionID(token))
	assert.False(t, ok)

	// Logging out without a token is a no-op.
	require.NoError(t, f.svc.Logout(ctx, &testCarrier{}))
}

func TestAdminBootstrapAndRegistrationFlags(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	bootstrapped, err := f.svc.IsAdminBootstrapped(ctx)
	require.NoError(t, err)
	assert.False(t, bootstrapped)

	allowed, err := f.svc.IsRegistrationAllowed(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)

	result := f.svc.RegisterInit(ctx, service.RegisterInput{
		Name:     "Site Admin",
		Email:    "admin@x.com",
		Password: "admin-password",
	})
	require.True(t, result.Success)

	bootstrapped, err = f.svc.IsAdminBootstrapped(ctx)
	require.NoError(t, err)
	assert.True(t, bootstrapped)

	// A second bootstrap attempt is refused.
	result = f.svc.RegisterInit(ctx, service.RegisterInput{
		Name:     "Another Admin",
		Email:    "admin2@x.com",
		Password: "admin-password",
	})
	assert.False(t, result.Success)
	assert.Equal(t, service.MsgUserExists, result.Message)

	f.settings.Settings.AllowReg = true
	allowed, err = f.svc.IsRegistrationAllowed(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		result := f.svc.Register(ctx, service.RegisterInput{
			Name:     "New User",
			Email:    "new@x.com",
			Password: "password123",
			Terms:    "on",
		})
		require.True(t, result.Success)

		user, err := f.users.GetByEmail(ctx, "new@x.com")
		require.NoError(t, err)
		assert.Equal(t, "user", user.Role)
		assert.Equal(t, "accept", user.Terms)
		assert.NotEqual(t, "password123", user.PasswordHash)
	})

	t.Run("duplicate email", func(t *testing.T) {
		result := f.svc.Register(ctx, service.RegisterInput{
			Name:     "Copycat",
			Email:    "new@x.com",
			Password: "password123",
			Terms:    "on",
		})
		assert.False(t, result.Success)
		assert.Equal(t, service.MsgUserExists, result.Message)
	})

	t.Run("validation errors", func(t *testing.T) {
		result := f.svc.Register(ctx, service.RegisterInput{
			Name:     "",
			Email:    "bad",
			Password: "short",
		})
		assert.False(t, result.Success)
		assert.Contains(t, result.FieldErrors, "name")
		assert.Contains(t, result.FieldErrors, "email")
		assert.Contains(t, result.FieldErrors, "password")
		assert.Contains(t, result.FieldErrors, "terms")
	})
}
