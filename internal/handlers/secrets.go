package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/crypto"
	"github.com/BradenHooton/tresor/internal/models"
	pkghttp "github.com/BradenHooton/tresor/pkg/http"
	"github.com/go-chi/chi/v5"
)

const timeFormat = time.RFC3339

// SecretServiceInterface defines the interface for vault business logic
type SecretServiceInterface interface {
	Create(ctx context.Context, userID, password, content string) (*models.Secret, error)
	Get(ctx context.Context, userID, secretID, password string) (*models.DecryptedSecret, error)
	List(ctx context.Context, userID, password string) ([]*models.DecryptedSecret, error)
	Update(ctx context.Context, userID, secretID, password, content string, expectedVersion int64) (*models.Secret, error)
	Delete(ctx context.Context, userID, secretID string) error
}

// SecretHandler handles encrypted secret requests. Every read and write
// carries the owner's password in the body; it is used for one key
// derivation and discarded.
type SecretHandler struct {
	service SecretServiceInterface
}

// NewSecretHandler creates a new SecretHandler
func NewSecretHandler(service SecretServiceInterface) *SecretHandler {
	return &SecretHandler{service: service}
}

// CreateSecretRequest represents the request body for creating a secret
type CreateSecretRequest struct {
	Content  string `json:"content" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateSecretRequest represents the request body for rewriting a secret
type UpdateSecretRequest struct {
	Content  string `json:"content" validate:"required"`
	Password string `json:"password" validate:"required"`
	Version  int64  `json:"version" validate:"required,min=1"`
}

// UnlockRequest carries the password for read operations
type UnlockRequest struct {
	Password string `json:"password" validate:"required"`
}

// SecretResponse represents a stored secret without its contents
type SecretResponse struct {
	ID        string `json:"id"`
	Version   int64  `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toSecretResponse(secret *models.Secret) *SecretResponse {
	return &SecretResponse{
		ID:        secret.ID,
		Version:   secret.Version,
		CreatedAt: secret.CreatedAt.Format(timeFormat),
		UpdatedAt: secret.UpdatedAt.Format(timeFormat),
	}
}

// Create stores a new encrypted secret
func (h *SecretHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req CreateSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	secret, err := h.service.Create(r.Context(), claims.UserID, req.Password, req.Content)
	if err != nil {
		writeSecretError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toSecretResponse(secret))
}

// Get decrypts and returns a single secret
func (h *SecretHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	secretID := chi.URLParam(r, "id")
	secret, err := h.service.Get(r.Context(), claims.UserID, secretID, req.Password)
	if err != nil {
		writeSecretError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, secret)
}

// List decrypts and returns all of the caller's secrets
func (h *SecretHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	secrets, err := h.service.List(r.Context(), claims.UserID, req.Password)
	if err != nil {
		writeSecretError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"secrets": secrets})
}

// Update rewrites a secret's contents
func (h *SecretHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req UpdateSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	secretID := chi.URLParam(r, "id")
	secret, err := h.service.Update(r.Context(), claims.UserID, secretID, req.Password, req.Content, req.Version)
	if err != nil {
		writeSecretError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toSecretResponse(secret))
}

// Delete removes a secret
func (h *SecretHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	secretID := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), claims.UserID, secretID); err != nil {
		writeSecretError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeSecretError maps vault sentinels to responses. A failed
// decryption reports only that the secret could not be opened; whether
// the record was tampered with or the password was wrong is not
// distinguishable, by construction.
func writeSecretError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, crypto.ErrDecryptionFailed):
		pkghttp.WriteError(w, http.StatusUnprocessableEntity, "decryption_failed",
			"The secret could not be decrypted with the supplied password")
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "Invalid password")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "You do not have access to this secret")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Secret not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "The secret was modified concurrently; re-read and retry")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
