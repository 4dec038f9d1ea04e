package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/models"
	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
)

// TwoFactorRepository defines the TOTP enrollment persistence operations
type TwoFactorRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.TwoFactorAuth, error)
	Upsert(ctx context.Context, tfa *models.TwoFactorAuth) (*models.TwoFactorAuth, error)
	SetEnabled(ctx context.Context, userID string, enabled bool) error
	Delete(ctx context.Context, userID string) error
}

// TOTPSetupResponse carries the provisioning material for an
// authenticator app. The raw secret is shown exactly once, at setup.
type TOTPSetupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
	QRCode string `json:"qr_code"`
}

// TOTPService manages authenticator-app enrollment and verification.
type TOTPService struct {
	twoFactor   TwoFactorRepository
	users       UserRepository
	totp        *auth.TOTPManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewTOTPService(twoFactor TwoFactorRepository, users UserRepository, totp *auth.TOTPManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *TOTPService {
	return &TOTPService{
		twoFactor:   twoFactor,
		users:       users,
		totp:        totp,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Setup generates a new TOTP secret for the user and returns it with a
// provisioning QR code. The enrollment stays disabled until Enable proves
// the user's authenticator produces valid codes.
func (s *TOTPService) Setup(ctx context.Context, userID string) (*TOTPSetupResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, url, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		s.logger.Error("totp secret generation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Only the ciphertext ever reaches the database
	encrypted, err := s.totp.EncryptSecret(secret)
	if err != nil {
		s.logger.Error("totp secret encryption failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if _, err := s.twoFactor.Upsert(ctx, &models.TwoFactorAuth{
		UserID:  userID,
		Secret:  encrypted,
		Enabled: false,
	}); err != nil {
		return nil, err
	}

	qrCode, err := s.totp.QRCodeDataURL(url)
	if err != nil {
		s.logger.Error("totp qr code generation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &TOTPSetupResponse{Secret: secret, URL: url, QRCode: qrCode}, nil
}

// Enable flips the enrollment on after the user proves possession with a
// current code.
func (s *TOTPService) Enable(ctx context.Context, userID, code string) error {
	tfa, err := s.twoFactor.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	secret, err := s.totp.DecryptSecret(tfa.Secret)
	if err != nil {
		s.logger.Error("stored totp secret unreadable",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.totp.Validate(secret, code)
	if err != nil || !valid {
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "totp_enable_failed",
			UserID:        userID,
			FailureReason: "invalid_code",
		})
		return models.ErrInvalidOrExpiredCode
	}

	if err := s.twoFactor.SetEnabled(ctx, userID, true); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.MFAEnabled = true
	if _, err := s.users.Update(ctx, userID, user); err != nil {
		return err
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "totp_enabled",
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// Disable removes the enrollment. The current password is required so a
// hijacked session cannot silently weaken the account.
func (s *TOTPService) Disable(ctx context.Context, userID, password string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := verifyPassword(user, password); err != nil {
		return err
	}

	if err := s.twoFactor.Delete(ctx, userID); err != nil && !isNotFound(err) {
		return err
	}

	user.MFAEnabled = false
	if _, err := s.users.Update(ctx, userID, user); err != nil {
		return err
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "totp_disabled",
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// Verify checks a code against the user's enabled enrollment.
func (s *TOTPService) Verify(ctx context.Context, userID, code string) error {
	tfa, err := s.twoFactor.GetByUserID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return models.ErrInvalidOrExpiredCode
		}
		return err
	}
	if !tfa.Enabled {
		return models.ErrInvalidOrExpiredCode
	}

	secret, err := s.totp.DecryptSecret(tfa.Secret)
	if err != nil {
		s.logger.Error("stored totp secret unreadable",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.totp.Validate(secret, code)
	if err != nil || !valid {
		return models.ErrInvalidOrExpiredCode
	}
	return nil
}

// Enrolled reports whether the user has an enabled enrollment.
func (s *TOTPService) Enrolled(ctx context.Context, userID string) (bool, error) {
	tfa, err := s.twoFactor.GetByUserID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return tfa.Enabled, nil
}
