package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService defines the interface for sending transactional email
type EmailService interface {
	SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error
	SendPasswordResetLink(ctx context.Context, email, token string, expiresAt time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendVerificationCode emails the 6-digit login code. The code itself is
// never logged.
func (s *AWSSESEmailService) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	minutes := int(time.Until(expiresAt).Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Your sign-in code</h2>
        <p>Enter this code to finish signing in:</p>
        <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
        <p>The code expires in %d minutes. If you did not try to sign in, you can ignore this email.</p>
    </div>
</body>
</html>`, code, minutes)

	textBody := fmt.Sprintf("Your sign-in code is %s. It expires in %d minutes.", code, minutes)

	if err := s.send(ctx, email, "Your sign-in code", htmlBody, textBody); err != nil {
		return err
	}

	s.logger.Info("verification code email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

// SendPasswordResetLink emails a single-use reset link.
func (s *AWSSESEmailService) SendPasswordResetLink(ctx context.Context, email, token string, expiresAt time.Time) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	minutes := int(time.Until(expiresAt).Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Reset your password</h2>
        <p>Someone requested a password reset for your account. If this was you, use the link below:</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Reset password</a></p>
        <p>The link expires in %d minutes and can be used once. If you did not request this, ignore this email.</p>
        <p style="color: #a00;">Resetting your password makes previously stored secrets unreadable unless they are re-encrypted during the reset.</p>
    </div>
</body>
</html>`, resetLink, minutes)

	textBody := fmt.Sprintf("Reset your password: %s (expires in %d minutes)", resetLink, minutes)

	if err := s.send(ctx, email, "Reset your password", htmlBody, textBody); err != nil {
		return err
	}

	s.logger.Info("password reset email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		s.logger.Error("failed to send email",
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NoopEmailService logs instead of sending; used in development when SES
// credentials are absent.
type NoopEmailService struct {
	logger *slog.Logger
}

func NewNoopEmailService(logger *slog.Logger) *NoopEmailService {
	return &NoopEmailService{logger: logger}
}

func (s *NoopEmailService) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	s.logger.Info("email delivery disabled; verification code not sent",
		slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

func (s *NoopEmailService) SendPasswordResetLink(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.logger.Info("email delivery disabled; reset link not sent",
		slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}
