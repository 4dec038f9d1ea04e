package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/BradenHooton/tresor/internal/services"
	pkgauth "github.com/BradenHooton/tresor/pkg/auth"
	pkghttp "github.com/BradenHooton/tresor/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, req services.RegisterRequest, remoteIP string) (*services.UserResponse, error)
	Login(ctx context.Context, email, password, remoteIP string) (*services.LoginResponse, error)
	VerifyEmailCode(ctx context.Context, userID, code, remoteIP string) (*services.LoginResponse, error)
	VerifyTOTP(ctx context.Context, userID, code, remoteIP string) (*services.LoginResponse, error)
	ResendCode(ctx context.Context, userID string) error
}

// AuthHandler handles registration, login, and second-factor requests
type AuthHandler struct {
	service        AuthServiceInterface
	tm             *auth.TokenManager
	trustedProxies []string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, tm *auth.TokenManager, trustedProxies []string) *AuthHandler {
	return &AuthHandler{
		service:        service,
		tm:             tm,
		trustedProxies: trustedProxies,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyCodeRequest carries the pending marker and the submitted code
type VerifyCodeRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required,len=6,numeric"`
}

// ResendCodeRequest carries the pending marker for a resend
type ResendCodeRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
}

// pendingUserID verifies a pending-MFA marker and returns its subject.
// Session tokens are not accepted here; the two token types are never
// interchangeable.
func (h *AuthHandler) pendingUserID(token string) (string, bool) {
	claims, err := h.tm.Verify(token)
	if err != nil || claims.Type != models.TokenTypeMFAPending {
		return "", false
	}
	return claims.UserID, true
}

// Register handles new account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	remoteIP := pkghttp.ExtractClientIP(r, h.trustedProxies)

	if _, err := h.service.Register(r.Context(), req, remoteIP); err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			// Identical body to success; existing addresses are not revealed
			pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
				"message": "Registration received.",
			})
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Registration could not be completed")
		case isPasswordPolicyError(err):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrExternalService):
			pkghttp.WriteServiceUnavailable(w, "Registration is temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "Registration received.",
	})
}

// Login handles the password step of login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	remoteIP := pkghttp.ExtractClientIP(r, h.trustedProxies)

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, remoteIP)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// VerifyEmailCode handles the emailed-code second factor
func (h *AuthHandler) VerifyEmailCode(w http.ResponseWriter, r *http.Request) {
	h.verifySecondFactor(w, r, h.service.VerifyEmailCode)
}

// VerifyTOTP handles the authenticator-app second factor
func (h *AuthHandler) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	h.verifySecondFactor(w, r, h.service.VerifyTOTP)
}

func (h *AuthHandler) verifySecondFactor(w http.ResponseWriter, r *http.Request, verify func(ctx context.Context, userID, code, remoteIP string) (*services.LoginResponse, error)) {
	var req VerifyCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	userID, ok := h.pendingUserID(req.PendingToken)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Invalid or expired login session")
		return
	}

	remoteIP := pkghttp.ExtractClientIP(r, h.trustedProxies)

	resp, err := verify(r.Context(), userID, req.Code, remoteIP)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ResendCode issues a fresh email code for a pending login
func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	userID, ok := h.pendingUserID(req.PendingToken)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Invalid or expired login session")
		return
	}

	if err := h.service.ResendCode(r.Context(), userID); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "A new code has been sent."})
}

// writeAuthError maps auth-flow sentinels to responses. Wrong email,
// wrong password, and bad codes all collapse to a single 401 body.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrInvalidOrExpiredCode),
		errors.Is(err, models.ErrNotFound):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteTooManyRequests(w, "Too many failed attempts. Please try again later.")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrExternalService):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func isPasswordPolicyError(err error) bool {
	var policyErr *pkgauth.PasswordPolicyError
	return errors.As(err, &policyErr)
}
