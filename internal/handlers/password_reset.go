package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/tresor/internal/models"
	pkghttp "github.com/BradenHooton/tresor/pkg/http"
)

// PasswordResetServiceInterface defines the interface for the reset flow
type PasswordResetServiceInterface interface {
	Request(ctx context.Context, email string) error
	Validate(ctx context.Context, token string) error
	Complete(ctx context.Context, token, newPassword, oldPassword string) error
}

// PasswordResetHandler handles forgotten-password requests
type PasswordResetHandler struct {
	service PasswordResetServiceInterface
}

// NewPasswordResetHandler creates a new PasswordResetHandler
func NewPasswordResetHandler(service PasswordResetServiceInterface) *PasswordResetHandler {
	return &PasswordResetHandler{service: service}
}

// RequestResetRequest represents the request body for starting a reset
type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ValidateResetRequest represents the request body for checking a token
type ValidateResetRequest struct {
	Token string `json:"token" validate:"required"`
}

// CompleteResetRequest represents the request body for finishing a reset.
// OldPassword is optional; when present, stored secrets are re-encrypted
// under the new password instead of becoming unreadable.
type CompleteResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
	OldPassword string `json:"old_password"`
}

// Request starts a password reset. The response never reveals whether
// the address is registered.
func (h *PasswordResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.service.Request(r.Context(), req.Email); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the address is registered, a reset link has been sent.",
	})
}

// Validate reports whether a reset token is still usable
func (h *PasswordResetHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateResetRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Validate(r.Context(), req.Token); err != nil {
		if errors.Is(err, models.ErrInvalidOrExpiredCode) {
			pkghttp.WriteError(w, http.StatusGone, "token_invalid", "The reset link is invalid or has expired")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// Complete sets the new password and consumes the token
func (h *PasswordResetHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteResetRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Complete(r.Context(), req.Token, req.NewPassword, req.OldPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidOrExpiredCode):
			pkghttp.WriteError(w, http.StatusGone, "token_invalid", "The reset link is invalid or has expired")
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "The current password is incorrect")
		case isPasswordPolicyError(err):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset."})
}
