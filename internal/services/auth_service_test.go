package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type authServiceFixture struct {
	users   *MockUserRepository
	codes   *MockVerificationCodeRepository
	email   *MockEmailService
	captcha *MockCaptchaVerifier
	tm      *auth.TokenManager
	svc     *AuthService
}

func newAuthServiceFixture(t *testing.T) *authServiceFixture {
	t.Helper()

	tm, err := auth.NewTokenManager(testJWTSecret, 24*time.Hour, 5*time.Minute)
	require.NoError(t, err)

	f := &authServiceFixture{
		users:   &MockUserRepository{},
		codes:   &MockVerificationCodeRepository{},
		email:   &MockEmailService{},
		captcha: &MockCaptchaVerifier{},
		tm:      tm,
	}

	totpMgr := testTOTPManager(t)
	codeSvc := NewCodeService(f.codes, f.email, 10*time.Minute, testLogger())
	totpSvc := NewTOTPService(&MockTwoFactorRepository{}, f.users, totpMgr, testLogger(), testAuditLogger())
	timing := auth.NewTimingDelay(auth.TimingConfig{})

	f.svc = NewAuthService(f.users, codeSvc, totpSvc, f.captcha, tm, timing,
		LockoutPolicy{MaxAttempts: 3, Duration: 15 * time.Minute},
		testLogger(), testAuditLogger())
	return f
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	f := newAuthServiceFixture(t)

	_, err := f.svc.Login(context.Background(), "nobody@b.com", "Str0ng!Pass", "1.2.3.4")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthService_Login_WrongPasswordRecordsAttempt(t *testing.T) {
	f := newAuthServiceFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")

	recorded := false
	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}
	f.users.RecordFailedAttemptFunc = func(ctx context.Context, id string, maxAttempts int, lockout time.Duration) error {
		recorded = true
		assert.Equal(t, "user-1", id)
		assert.Equal(t, 3, maxAttempts)
		return nil
	}

	_, err := f.svc.Login(context.Background(), "a@b.com", "wrong", "1.2.3.4")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.True(t, recorded)
}

func TestAuthService_Login_LockedAccount(t *testing.T) {
	f := newAuthServiceFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")
	until := time.Now().Add(10 * time.Minute)
	user.LockedUntil = &until

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	// Even the correct password is rejected while locked
	_, err := f.svc.Login(context.Background(), "a@b.com", "Str0ng!Pass", "1.2.3.4")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

func TestAuthService_Login_IssuesEmailCodeAndPendingToken(t *testing.T) {
	f := newAuthServiceFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")

	var issuedCode string
	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}
	f.codes.CreateFunc = func(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
		issuedCode = code.Code
		code.ID = "code-1"
		return code, nil
	}

	resp, err := f.svc.Login(context.Background(), "a@b.com", "Str0ng!Pass", "1.2.3.4")
	require.NoError(t, err)

	assert.True(t, resp.MFARequired)
	assert.Equal(t, MFAMethodEmailCode, resp.MFAMethod)
	assert.Empty(t, resp.SessionToken)
	assert.Len(t, issuedCode, 6)

	// The pending marker must not pass as a session
	claims, err := f.tm.Verify(resp.PendingToken)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeMFAPending, claims.Type)
}

func TestAuthService_Login_TOTPUserGetsNoEmailCode(t *testing.T) {
	f := newAuthServiceFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")
	user.MFAEnabled = true

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}
	f.codes.CreateFunc = func(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
		t.Fatal("no email code should be issued for an authenticator user")
		return nil, nil
	}

	resp, err := f.svc.Login(context.Background(), "a@b.com", "Str0ng!Pass", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, MFAMethodTOTP, resp.MFAMethod)
}

func TestAuthService_Login_OAuthLinkedBypassesSecondFactor(t *testing.T) {
	f := newAuthServiceFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")
	user.OAuthProvider = "google"
	user.OAuthID = "sub-123"

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	resp, err := f.svc.Login(context.Background(), "a@b.com", "Str0ng!Pass", "1.2.3.4")
	require.NoError(t, err)

	assert.False(t, resp.MFARequired)
	claims, err := f.tm.Verify(resp.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeSession, claims.Type)
}

func TestAuthService_VerifyEmailCode_Success(t *testing.T) {
	f := newAuthServiceFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")

	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}
	f.codes.ConsumeFunc = func(ctx context.Context, userID, code string) error {
		if code == "123456" {
			return nil
		}
		return models.ErrInvalidOrExpiredCode
	}

	cleared := false
	f.users.ClearFailedAttemptsFunc = func(ctx context.Context, id string) error {
		cleared = true
		return nil
	}

	resp, err := f.svc.VerifyEmailCode(context.Background(), "user-1", "123456", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, cleared)

	claims, err := f.tm.Verify(resp.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestAuthService_VerifyEmailCode_SingleUse(t *testing.T) {
	f := newAuthServiceFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")

	consumed := false
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}
	f.codes.ConsumeFunc = func(ctx context.Context, userID, code string) error {
		if consumed {
			return models.ErrInvalidOrExpiredCode
		}
		consumed = true
		return nil
	}

	_, err := f.svc.VerifyEmailCode(context.Background(), "user-1", "123456", "1.2.3.4")
	require.NoError(t, err)

	_, err = f.svc.VerifyEmailCode(context.Background(), "user-1", "123456", "1.2.3.4")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredCode)
}

func TestAuthService_Register_CaptchaRejected(t *testing.T) {
	f := newAuthServiceFixture(t)
	f.captcha.VerifyFunc = func(ctx context.Context, token, remoteIP string) error {
		return models.ErrBadRequest
	}

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		FirstName: "A", LastName: "B", Email: "a@b.com", Password: "Str0ng!Pass",
	}, "1.2.3.4")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	f := newAuthServiceFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		FirstName: "A", LastName: "B", Email: "a@b.com", Password: "weak",
	}, "1.2.3.4")
	assert.Error(t, err)
}

func TestAuthService_RegisterLoginVerify_EndToEnd(t *testing.T) {
	f := newAuthServiceFixture(t)

	var stored *models.User
	f.users.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		user.ID = "user-1"
		user.Role = "user"
		stored = user
		return user, nil
	}
	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		if stored != nil && email == stored.Email {
			return stored, nil
		}
		return nil, models.ErrNotFound
	}
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return stored, nil
	}

	var issuedCode string
	f.codes.CreateFunc = func(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
		issuedCode = code.Code
		return code, nil
	}
	f.codes.ConsumeFunc = func(ctx context.Context, userID, code string) error {
		if code == issuedCode {
			return nil
		}
		return models.ErrInvalidOrExpiredCode
	}

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@b.com", Password: "Str0ng!Pass",
	}, "1.2.3.4")
	require.NoError(t, err)

	login, err := f.svc.Login(context.Background(), "ada@b.com", "Str0ng!Pass", "1.2.3.4")
	require.NoError(t, err)
	require.True(t, login.MFARequired)

	final, err := f.svc.VerifyEmailCode(context.Background(), "user-1", issuedCode, "1.2.3.4")
	require.NoError(t, err)

	claims, err := f.tm.Verify(final.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ada@b.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
}

func TestAuthService_ResendCode_RejectedForTOTPUser(t *testing.T) {
	f := newAuthServiceFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")
	user.MFAEnabled = true

	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	assert.ErrorIs(t, f.svc.ResendCode(context.Background(), "user-1"), models.ErrBadRequest)
}
