package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BradenHooton/tresor/internal/models"
)

const turnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// CaptchaVerifier checks a client-supplied challenge response before
// account registration proceeds.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// TurnstileService verifies Cloudflare Turnstile tokens. Verification
// fails closed: an unreachable verify endpoint rejects the registration.
type TurnstileService struct {
	secretKey string
	client    *http.Client
	logger    *slog.Logger
}

func NewTurnstileService(secretKey string, logger *slog.Logger) *TurnstileService {
	return &TurnstileService{
		secretKey: secretKey,
		client:    &http.Client{Timeout: 5 * time.Second},
		logger:    logger,
	}
}

type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (s *TurnstileService) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return fmt.Errorf("%w: missing captcha token", models.ErrBadRequest)
	}

	form := url.Values{}
	form.Set("secret", s.secretKey)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, turnstileVerifyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: captcha verification unavailable", models.ErrExternalService)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("turnstile verification request failed", slog.Any("error", err))
		return fmt.Errorf("%w: captcha verification unavailable", models.ErrExternalService)
	}
	defer resp.Body.Close()

	var result turnstileResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		s.logger.Error("turnstile response decode failed", slog.Any("error", err))
		return fmt.Errorf("%w: captcha verification unavailable", models.ErrExternalService)
	}

	if !result.Success {
		s.logger.Info("turnstile verification rejected",
			slog.Any("error_codes", result.ErrorCodes))
		return fmt.Errorf("%w: captcha verification failed", models.ErrBadRequest)
	}

	return nil
}

// NoopCaptchaVerifier accepts everything; used when Turnstile is disabled.
type NoopCaptchaVerifier struct{}

func (NoopCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	return nil
}
