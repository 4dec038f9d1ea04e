package services

import (
	"context"
	"time"

	"github.com/BradenHooton/tresor/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc                   func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc                func(ctx context.Context, email string) (*models.User, error)
	GetByOAuthFunc                func(ctx context.Context, provider, oauthID string) (*models.User, error)
	CreateFunc                    func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc                    func(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdatePasswordFunc            func(ctx context.Context, id, passwordHash string) error
	UpdatePasswordWithSecretsFunc func(ctx context.Context, id, passwordHash string, contents map[string]string) error
	LinkOAuthFunc                 func(ctx context.Context, id, provider, oauthID string) error
	RecordFailedAttemptFunc       func(ctx context.Context, id string, maxAttempts int, lockout time.Duration) error
	ClearFailedAttemptsFunc       func(ctx context.Context, id string) error
	DeleteFunc                    func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByOAuth(ctx context.Context, provider, oauthID string) (*models.User, error) {
	if m.GetByOAuthFunc != nil {
		return m.GetByOAuthFunc(ctx, provider, oauthID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return user, nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) UpdatePasswordWithSecrets(ctx context.Context, id, passwordHash string, contents map[string]string) error {
	if m.UpdatePasswordWithSecretsFunc != nil {
		return m.UpdatePasswordWithSecretsFunc(ctx, id, passwordHash, contents)
	}
	return nil
}

func (m *MockUserRepository) LinkOAuth(ctx context.Context, id, provider, oauthID string) error {
	if m.LinkOAuthFunc != nil {
		return m.LinkOAuthFunc(ctx, id, provider, oauthID)
	}
	return nil
}

func (m *MockUserRepository) RecordFailedAttempt(ctx context.Context, id string, maxAttempts int, lockout time.Duration) error {
	if m.RecordFailedAttemptFunc != nil {
		return m.RecordFailedAttemptFunc(ctx, id, maxAttempts, lockout)
	}
	return nil
}

func (m *MockUserRepository) ClearFailedAttempts(ctx context.Context, id string) error {
	if m.ClearFailedAttemptsFunc != nil {
		return m.ClearFailedAttemptsFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockSecretRepository implements SecretRepository for testing
type MockSecretRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.Secret, error)
	ListByUserFunc func(ctx context.Context, userID string) ([]*models.Secret, error)
	CreateFunc     func(ctx context.Context, secret *models.Secret) (*models.Secret, error)
	UpdateFunc     func(ctx context.Context, id string, content string, expectedVersion int64) (*models.Secret, error)
	DeleteFunc     func(ctx context.Context, id string) error
}

func (m *MockSecretRepository) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSecretRepository) ListByUser(ctx context.Context, userID string) ([]*models.Secret, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []*models.Secret{}, nil
}

func (m *MockSecretRepository) Create(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, secret)
	}
	secret.ID = "secret-1"
	secret.Version = 1
	return secret, nil
}

func (m *MockSecretRepository) Update(ctx context.Context, id string, content string, expectedVersion int64) (*models.Secret, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, content, expectedVersion)
	}
	return nil, models.ErrInternalServer
}

func (m *MockSecretRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockVerificationCodeRepository implements VerificationCodeRepository for testing
type MockVerificationCodeRepository struct {
	CreateFunc        func(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error)
	ConsumeFunc       func(ctx context.Context, userID, code string) error
	DeleteExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *MockVerificationCodeRepository) Create(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, code)
	}
	code.ID = "code-1"
	return code, nil
}

func (m *MockVerificationCodeRepository) Consume(ctx context.Context, userID, code string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, userID, code)
	}
	return models.ErrInvalidOrExpiredCode
}

func (m *MockVerificationCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockResetTokenRepository implements ResetTokenRepository for testing
type MockResetTokenRepository struct {
	ReplaceForUserFunc func(ctx context.Context, token *models.PasswordResetToken) (*models.PasswordResetToken, error)
	GetByTokenFunc     func(ctx context.Context, token string) (*models.PasswordResetToken, error)
	ConsumeFunc        func(ctx context.Context, token string) (*models.PasswordResetToken, error)
	DeleteExpiredFunc  func(ctx context.Context) (int64, error)
}

func (m *MockResetTokenRepository) ReplaceForUser(ctx context.Context, token *models.PasswordResetToken) (*models.PasswordResetToken, error) {
	if m.ReplaceForUserFunc != nil {
		return m.ReplaceForUserFunc(ctx, token)
	}
	token.ID = "reset-1"
	return token, nil
}

func (m *MockResetTokenRepository) GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockResetTokenRepository) Consume(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, token)
	}
	return nil, models.ErrInvalidOrExpiredCode
}

func (m *MockResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockTwoFactorRepository implements TwoFactorRepository for testing
type MockTwoFactorRepository struct {
	GetByUserIDFunc func(ctx context.Context, userID string) (*models.TwoFactorAuth, error)
	UpsertFunc      func(ctx context.Context, tfa *models.TwoFactorAuth) (*models.TwoFactorAuth, error)
	SetEnabledFunc  func(ctx context.Context, userID string, enabled bool) error
	DeleteFunc      func(ctx context.Context, userID string) error
}

func (m *MockTwoFactorRepository) GetByUserID(ctx context.Context, userID string) (*models.TwoFactorAuth, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTwoFactorRepository) Upsert(ctx context.Context, tfa *models.TwoFactorAuth) (*models.TwoFactorAuth, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tfa)
	}
	tfa.ID = "tfa-1"
	return tfa, nil
}

func (m *MockTwoFactorRepository) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	if m.SetEnabledFunc != nil {
		return m.SetEnabledFunc(ctx, userID, enabled)
	}
	return nil
}

func (m *MockTwoFactorRepository) Delete(ctx context.Context, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationCodeFunc  func(ctx context.Context, email, code string, expiresAt time.Time) error
	SendPasswordResetLinkFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendVerificationCodeFunc != nil {
		return m.SendVerificationCodeFunc(ctx, email, code, expiresAt)
	}
	return nil
}

func (m *MockEmailService) SendPasswordResetLink(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetLinkFunc != nil {
		return m.SendPasswordResetLinkFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockCaptchaVerifier implements CaptchaVerifier for testing
type MockCaptchaVerifier struct {
	VerifyFunc func(ctx context.Context, token, remoteIP string) error
}

func (m *MockCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token, remoteIP)
	}
	return nil
}
