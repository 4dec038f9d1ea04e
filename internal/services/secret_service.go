package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/tresor/internal/crypto"
	"github.com/BradenHooton/tresor/internal/models"
	pkgauth "github.com/BradenHooton/tresor/pkg/auth"
	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
)

// UserRepository defines the user persistence operations the services need
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByOAuth(ctx context.Context, provider, oauthID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdatePasswordWithSecrets(ctx context.Context, id, passwordHash string, contents map[string]string) error
	LinkOAuth(ctx context.Context, id, provider, oauthID string) error
	RecordFailedAttempt(ctx context.Context, id string, maxAttempts int, lockout time.Duration) error
	ClearFailedAttempts(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// SecretRepository defines the secret persistence operations
type SecretRepository interface {
	GetByID(ctx context.Context, id string) (*models.Secret, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Secret, error)
	Create(ctx context.Context, secret *models.Secret) (*models.Secret, error)
	Update(ctx context.Context, id string, content string, expectedVersion int64) (*models.Secret, error)
	Delete(ctx context.Context, id string) error
}

// SecretService handles encrypted secret storage. Every operation that
// touches plaintext takes the owner's password; the service never holds
// derived key material beyond a single call.
type SecretService struct {
	secrets     SecretRepository
	users       UserRepository
	envelope    *crypto.Envelope
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewSecretService(secrets SecretRepository, users UserRepository, envelope *crypto.Envelope, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *SecretService {
	return &SecretService{
		secrets:     secrets,
		users:       users,
		envelope:    envelope,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// verifyOwnerPassword rejects a wrong password up front so a typo surfaces
// as invalid credentials rather than a decryption failure.
func (s *SecretService) verifyOwnerPassword(ctx context.Context, userID, password string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return models.ErrInvalidCredentials
	}
	return nil
}

// checkOwnership loads a secret and enforces that it belongs to userID.
// Ownership is decided before any decryption is attempted.
func (s *SecretService) checkOwnership(ctx context.Context, userID, secretID string) (*models.Secret, error) {
	secret, err := s.secrets.GetByID(ctx, secretID)
	if err != nil {
		return nil, err
	}
	if secret.UserID != userID {
		s.auditLogger.LogSecretAccess("secret_access_denied", userID, secretID, false)
		return nil, models.ErrForbidden
	}
	return secret, nil
}

// Create encrypts content under the owner's password and stores it.
func (s *SecretService) Create(ctx context.Context, userID, password, content string) (*models.Secret, error) {
	if err := s.verifyOwnerPassword(ctx, userID, password); err != nil {
		return nil, err
	}

	record, err := s.envelope.Encrypt(content, password)
	if err != nil {
		s.logger.Error("secret encryption failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	secret, err := s.secrets.Create(ctx, &models.Secret{UserID: userID, Content: record})
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogSecretAccess("secret_created", userID, secret.ID, true)
	return secret, nil
}

// Get decrypts a single secret for its owner.
func (s *SecretService) Get(ctx context.Context, userID, secretID, password string) (*models.DecryptedSecret, error) {
	secret, err := s.checkOwnership(ctx, userID, secretID)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.envelope.Decrypt(secret.Content, password)
	if err != nil {
		s.auditLogger.LogSecretAccess("secret_read_failed", userID, secretID, false)
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, err
		}
		s.logger.Error("stored secret record unparseable",
			slog.String("secret_id", secretID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogSecretAccess("secret_read", userID, secretID, true)
	return &models.DecryptedSecret{ID: secretID, Content: plaintext}, nil
}

// List decrypts all of the owner's secrets. A record that cannot be
// opened is returned with Unreadable set instead of failing the whole
// listing; one orphaned record must not hide the rest.
func (s *SecretService) List(ctx context.Context, userID, password string) ([]*models.DecryptedSecret, error) {
	if err := s.verifyOwnerPassword(ctx, userID, password); err != nil {
		return nil, err
	}

	secrets, err := s.secrets.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]*models.DecryptedSecret, 0, len(secrets))
	for _, secret := range secrets {
		plaintext, err := s.envelope.Decrypt(secret.Content, password)
		if err != nil {
			results = append(results, &models.DecryptedSecret{ID: secret.ID, Unreadable: true})
			continue
		}
		results = append(results, &models.DecryptedSecret{ID: secret.ID, Content: plaintext})
	}

	s.auditLogger.LogSecretAccess("secret_list", userID, "", true)
	return results, nil
}

// Update re-encrypts new content and swaps it in, guarded by the version
// the caller last read.
func (s *SecretService) Update(ctx context.Context, userID, secretID, password, content string, expectedVersion int64) (*models.Secret, error) {
	if _, err := s.checkOwnership(ctx, userID, secretID); err != nil {
		return nil, err
	}
	if err := s.verifyOwnerPassword(ctx, userID, password); err != nil {
		return nil, err
	}

	record, err := s.envelope.Encrypt(content, password)
	if err != nil {
		s.logger.Error("secret encryption failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	updated, err := s.secrets.Update(ctx, secretID, record, expectedVersion)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogSecretAccess("secret_updated", userID, secretID, true)
	return updated, nil
}

// Delete removes a secret. Deleting a secret that is already gone
// succeeds; deleting another user's secret does not.
func (s *SecretService) Delete(ctx context.Context, userID, secretID string) error {
	_, err := s.checkOwnership(ctx, userID, secretID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.secrets.Delete(ctx, secretID); err != nil {
		return err
	}

	s.auditLogger.LogSecretAccess("secret_deleted", userID, secretID, true)
	return nil
}

// RekeyOwner re-encrypts every readable secret under newPassword and
// commits them together with the new password hash. Records that cannot
// be opened with oldPassword were already orphaned by an earlier
// uncompensated password change and are left untouched.
func (s *SecretService) RekeyOwner(ctx context.Context, userID, oldPassword, newPassword, newPasswordHash string) error {
	secrets, err := s.secrets.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	contents := make(map[string]string, len(secrets))
	skipped := 0
	for _, secret := range secrets {
		plaintext, err := s.envelope.Decrypt(secret.Content, oldPassword)
		if err != nil {
			skipped++
			continue
		}

		record, err := s.envelope.Encrypt(plaintext, newPassword)
		if err != nil {
			s.logger.Error("re-encryption failed during rekey", slog.Any("error", err))
			return models.ErrInternalServer
		}
		contents[secret.ID] = record
	}

	if err := s.users.UpdatePasswordWithSecrets(ctx, userID, newPasswordHash, contents); err != nil {
		return err
	}

	if skipped > 0 {
		s.logger.Warn("rekey skipped unreadable records",
			slog.String("user_id", userID), slog.Int("skipped", skipped))
	}
	s.auditLogger.LogSecretAccess("secrets_rekeyed", userID, "", true)
	return nil
}
