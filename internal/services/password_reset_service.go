package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/tresor/internal/models"
	pkgauth "github.com/BradenHooton/tresor/pkg/auth"
	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
	"github.com/google/uuid"
)

// ResetTokenRepository defines the reset-token persistence operations
type ResetTokenRepository interface {
	ReplaceForUser(ctx context.Context, token *models.PasswordResetToken) (*models.PasswordResetToken, error)
	GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	Consume(ctx context.Context, token string) (*models.PasswordResetToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// PasswordResetService runs the forgotten-password flow.
type PasswordResetService struct {
	tokens      ResetTokenRepository
	users       UserRepository
	secrets     *SecretService
	email       EmailService
	ttl         time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewPasswordResetService(tokens ResetTokenRepository, users UserRepository, secrets *SecretService, email EmailService, ttl time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *PasswordResetService {
	return &PasswordResetService{
		tokens:      tokens,
		users:       users,
		secrets:     secrets,
		email:       email,
		ttl:         ttl,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Request issues a reset token and emails the link. The caller always
// sees success; whether the address exists is never revealed. A repeat
// request replaces the earlier token, so only the newest link works.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.logger.Info("reset requested for unknown email",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return nil
		}
		return err
	}

	token, err := s.tokens.ReplaceForUser(ctx, &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(s.ttl),
	})
	if err != nil {
		return err
	}

	// Dispatch failures are swallowed: surfacing an error only for
	// addresses that exist would leak which emails are registered. Login
	// codes fail closed instead, since identity is already proven there.
	if err := s.email.SendPasswordResetLink(ctx, user.Email, token.Token, token.ExpiresAt); err != nil {
		s.logger.Error("reset email dispatch failed", slog.Any("error", err))
		return nil
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "password_reset_requested",
		UserID:    user.ID,
		Success:   true,
	})
	return nil
}

// Validate checks whether a token is live without consuming it, so a
// reset form can be shown before the user types a new password.
func (s *PasswordResetService) Validate(ctx context.Context, token string) error {
	_, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return models.ErrInvalidOrExpiredCode
		}
		return err
	}
	return nil
}

// Complete consumes the token and sets the new password. If the user
// supplies their old password, stored secrets are re-encrypted under the
// new one; without it they become unreadable and are flagged as such on
// later listings.
func (s *PasswordResetService) Complete(ctx context.Context, token, newPassword, oldPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	// Every precondition is checked against the live token before it is
	// consumed, so a mistyped old password leaves the link usable for a
	// corrected retry.
	resetToken, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return models.ErrInvalidOrExpiredCode
		}
		return err
	}

	if oldPassword != "" {
		user, err := s.users.GetByID(ctx, resetToken.UserID)
		if err != nil {
			return err
		}
		if err := verifyPassword(user, oldPassword); err != nil {
			return err
		}
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("password hashing failed", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Atomic single-use delete, last before the write
	if _, err := s.tokens.Consume(ctx, token); err != nil {
		return err
	}

	if oldPassword != "" {
		if err := s.secrets.RekeyOwner(ctx, resetToken.UserID, oldPassword, newPassword, hash); err != nil {
			return err
		}
	} else {
		if err := s.users.UpdatePassword(ctx, resetToken.UserID, hash); err != nil {
			return err
		}
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "password_reset_completed",
		UserID:    resetToken.UserID,
		Success:   true,
	})
	return nil
}
