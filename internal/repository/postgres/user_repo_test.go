package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mpetrov/pinwall/internal/auth"
	"github.com/mpetrov/pinwall/internal/domain"
	"github.com/mpetrov/pinwall/internal/repository/postgres"
	"github.com/mpetrov/pinwall/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *domain.User
		wantErr bool
	}{
		{
			name: "successful creation",
			user: &domain.User{
				Email:        "create@x.com",
				PasswordHash: "hashedpassword",
				Role:         domain.RoleUser,
			},
			wantErr: false,
		},
		{
			name: "duplicate email",
			user: &domain.User{
				Email:        "create@x.com", // Same as above
				PasswordHash: "hashedpassword2",
				Role:         domain.RoleUser,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotZero(t, tt.user.ID)
			}
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	created, _ := testutil.NewUserBuilder().
		WithEmail("lookup@x.com").
		Build(t, repo)

	user, err := repo.GetByEmail(ctx, "lookup@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = repo.GetByEmail(ctx, "absent@x.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_AdminExists(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	exists, err := repo.AdminExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	testutil.NewUserBuilder().
		WithEmail("admin@x.com").
		WithRole(domain.RoleAdmin).
		Build(t, repo)

	exists, err = repo.AdminExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepository_RecordFailedAttempt(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().
		WithEmail("lockout@x.com").
		Build(t, repo)

	lockUntil := time.Now().Add(auth.LockDuration)

	// Below the threshold: counter moves, no lock.
	for i := 1; i < auth.MaxFailedAttempts; i++ {
		require.NoError(t, repo.RecordFailedAttempt(ctx, user.ID, auth.MaxFailedAttempts, lockUntil))

		stored, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, i, stored.FailedAttempts)
		assert.Nil(t, stored.LockUntil)
	}

	// The attempt that reaches the threshold sets the lock.
	require.NoError(t, repo.RecordFailedAttempt(ctx, user.ID, auth.MaxFailedAttempts, lockUntil))

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.MaxFailedAttempts, stored.FailedAttempts)
	require.NotNil(t, stored.LockUntil)
	assert.WithinDuration(t, lockUntil, *stored.LockUntil, time.Second)

	// Reset clears both columns.
	require.NoError(t, repo.ResetLockout(ctx, user.ID))

	stored, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedAttempts)
	assert.Nil(t, stored.LockUntil)
}

// Concurrent wrong-password attempts must not lose counter updates; the
// increment runs as a single conditional UPDATE, so the threshold cannot be
// bypassed by racing requests.
func TestUserRepository_RecordFailedAttempt_Concurrent(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().
		WithEmail("race@x.com").
		Build(t, repo)

	lockUntil := time.Now().Add(auth.LockDuration)

	var wg sync.WaitGroup
	for i := 0; i < auth.MaxFailedAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.RecordFailedAttempt(ctx, user.ID, auth.MaxFailedAttempts, lockUntil))
		}()
	}
	wg.Wait()

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.MaxFailedAttempts, stored.FailedAttempts)
	assert.NotNil(t, stored.LockUntil, "threshold reached concurrently must still lock")
}
