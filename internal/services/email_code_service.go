package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/BradenHooton/tresor/internal/models"
)

// VerificationCodeRepository defines the one-time code persistence operations
type VerificationCodeRepository interface {
	Create(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error)
	Consume(ctx context.Context, userID, code string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

const codeDigits = 6

// CodeService issues and consumes the emailed one-time login codes.
type CodeService struct {
	codes  VerificationCodeRepository
	email  EmailService
	ttl    time.Duration
	logger *slog.Logger
}

func NewCodeService(codes VerificationCodeRepository, email EmailService, ttl time.Duration, logger *slog.Logger) *CodeService {
	return &CodeService{
		codes:  codes,
		email:  email,
		ttl:    ttl,
		logger: logger,
	}
}

// generateCode draws a uniform 6-digit code from crypto/rand. Leading
// zeros are preserved.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

// Issue creates a fresh code for the user and emails it. Any previously
// issued unused code is invalidated.
func (s *CodeService) Issue(ctx context.Context, user *models.User) error {
	code, err := generateCode()
	if err != nil {
		s.logger.Error("code generation failed", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.ttl)
	if _, err := s.codes.Create(ctx, &models.VerificationCode{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: expiresAt,
	}); err != nil {
		return err
	}

	if err := s.email.SendVerificationCode(ctx, user.Email, code, expiresAt); err != nil {
		return fmt.Errorf("%w: could not deliver verification code", models.ErrExternalService)
	}

	s.logger.Info("verification code issued", slog.String("user_id", user.ID))
	return nil
}

// Consume validates and burns a submitted code. Wrong, expired, and
// already-used codes are indistinguishable to the caller.
func (s *CodeService) Consume(ctx context.Context, userID, code string) error {
	if len(code) != codeDigits {
		return models.ErrInvalidOrExpiredCode
	}
	return s.codes.Consume(ctx, userID, code)
}
