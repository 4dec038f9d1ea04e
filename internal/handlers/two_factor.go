package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/BradenHooton/tresor/internal/services"
	pkghttp "github.com/BradenHooton/tresor/pkg/http"
)

// TOTPServiceInterface defines the interface for authenticator enrollment
type TOTPServiceInterface interface {
	Setup(ctx context.Context, userID string) (*services.TOTPSetupResponse, error)
	Enable(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID, password string) error
	Enrolled(ctx context.Context, userID string) (bool, error)
}

// TwoFactorHandler handles authenticator-app enrollment requests
type TwoFactorHandler struct {
	service TOTPServiceInterface
}

// NewTwoFactorHandler creates a new TwoFactorHandler
func NewTwoFactorHandler(service TOTPServiceInterface) *TwoFactorHandler {
	return &TwoFactorHandler{service: service}
}

// EnableTOTPRequest carries the first authenticator code
type EnableTOTPRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// DisableTOTPRequest carries the account password
type DisableTOTPRequest struct {
	Password string `json:"password" validate:"required"`
}

// Setup generates a fresh enrollment and returns the provisioning QR
func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	resp, err := h.service.Setup(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Enable turns the enrollment on after verifying a current code
func (h *TwoFactorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req EnableTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Enable(r.Context(), claims.UserID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidOrExpiredCode):
			pkghttp.WriteBadRequest(w, "The code is not valid")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteBadRequest(w, "Run setup before enabling")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication enabled."})
}

// Disable removes the enrollment
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req DisableTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), claims.UserID, req.Password); err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			pkghttp.WriteUnauthorized(w, "Invalid password")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication disabled."})
}

// Status reports whether the caller has an enabled enrollment
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	enrolled, err := h.service.Enrolled(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": enrolled})
}
