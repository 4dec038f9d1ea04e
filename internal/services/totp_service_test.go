package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTOTPManager(t *testing.T) *auth.TOTPManager {
	t.Helper()

	tm, err := auth.NewTOTPManager([]byte("test-mfa-encryption-key-32-char!"), "Tresor")
	require.NoError(t, err)
	return tm
}

type totpFixture struct {
	twoFactor *MockTwoFactorRepository
	users     *MockUserRepository
	totp      *auth.TOTPManager
	svc       *TOTPService
}

func newTOTPFixture(t *testing.T) *totpFixture {
	t.Helper()

	f := &totpFixture{
		twoFactor: &MockTwoFactorRepository{},
		users:     &MockUserRepository{},
		totp:      testTOTPManager(t),
	}
	f.svc = NewTOTPService(f.twoFactor, f.users, f.totp, testLogger(), testAuditLogger())
	return f
}

func TestTOTPService_SetupThenEnable(t *testing.T) {
	f := newTOTPFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")

	var pending *models.TwoFactorAuth
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}
	f.twoFactor.UpsertFunc = func(ctx context.Context, tfa *models.TwoFactorAuth) (*models.TwoFactorAuth, error) {
		pending = tfa
		return tfa, nil
	}
	f.twoFactor.GetByUserIDFunc = func(ctx context.Context, userID string) (*models.TwoFactorAuth, error) {
		if pending == nil {
			return nil, models.ErrNotFound
		}
		return pending, nil
	}
	f.twoFactor.SetEnabledFunc = func(ctx context.Context, userID string, enabled bool) error {
		pending.Enabled = enabled
		return nil
	}

	setup, err := f.svc.Setup(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.URL, "otpauth://totp/")
	assert.Contains(t, setup.QRCode, "data:image/png;base64,")
	assert.False(t, pending.Enabled)

	// Only the ciphertext is persisted; it opens back to the secret the
	// user was shown
	assert.NotEqual(t, setup.Secret, pending.Secret)
	assert.NotContains(t, pending.Secret, setup.Secret)
	stored, err := f.totp.DecryptSecret(pending.Secret)
	require.NoError(t, err)
	assert.Equal(t, setup.Secret, stored)

	// Enabling requires a valid current code
	err = f.svc.Enable(context.Background(), "user-1", "000000")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredCode)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.Enable(context.Background(), "user-1", code))
	assert.True(t, pending.Enabled)
	assert.True(t, user.MFAEnabled)
}

func TestTOTPService_Verify_DisabledEnrollmentRejected(t *testing.T) {
	f := newTOTPFixture(t)

	f.twoFactor.GetByUserIDFunc = func(ctx context.Context, userID string) (*models.TwoFactorAuth, error) {
		return &models.TwoFactorAuth{UserID: userID, Secret: "SECRET", Enabled: false}, nil
	}

	err := f.svc.Verify(context.Background(), "user-1", "123456")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredCode)
}

func TestTOTPService_Disable_RequiresPassword(t *testing.T) {
	f := newTOTPFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")
	user.MFAEnabled = true

	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	err := f.svc.Disable(context.Background(), "user-1", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	require.NoError(t, f.svc.Disable(context.Background(), "user-1", "Str0ng!Pass"))
	assert.False(t, user.MFAEnabled)
}

func TestTOTPService_Enrolled(t *testing.T) {
	f := newTOTPFixture(t)

	enrolled, err := f.svc.Enrolled(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, enrolled)

	f.twoFactor.GetByUserIDFunc = func(ctx context.Context, userID string) (*models.TwoFactorAuth, error) {
		return &models.TwoFactorAuth{UserID: userID, Secret: "SECRET", Enabled: true}, nil
	}

	enrolled, err = f.svc.Enrolled(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, enrolled)
}
