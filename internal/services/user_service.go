package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/tresor/internal/models"
	pkgauth "github.com/BradenHooton/tresor/pkg/auth"
	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
)

// UserService handles profile reads and credential changes.
type UserService struct {
	users       UserRepository
	secrets     *SecretService
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewUserService(users UserRepository, secrets *SecretService, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		users:       users,
		secrets:     secrets,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

// UpdateProfile changes name fields only; email and role are immutable
// through this path.
func (s *UserService) UpdateProfile(ctx context.Context, userID, firstName, lastName string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.FirstName = firstName
	user.LastName = lastName

	updated, err := s.users.Update(ctx, userID, user)
	if err != nil {
		return nil, err
	}
	return toUserResponse(updated), nil
}

// ChangePassword verifies the current password, enforces the policy on
// the new one, and re-encrypts every stored secret in the same commit as
// the hash change. No secret is orphaned by this path.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := verifyPassword(user, oldPassword); err != nil {
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "password_change_failed",
			UserID:        userID,
			FailureReason: "invalid_credentials",
		})
		return err
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("password hashing failed", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.secrets.RekeyOwner(ctx, userID, oldPassword, newPassword, hash); err != nil {
		return err
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "password_changed",
		UserID:    userID,
		Success:   true,
	})
	return nil
}
