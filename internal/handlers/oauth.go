package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/BradenHooton/tresor/internal/models"
	"github.com/BradenHooton/tresor/internal/services"
	pkghttp "github.com/BradenHooton/tresor/pkg/http"
)

// OAuthServiceInterface defines the interface for OAuth login
type OAuthServiceInterface interface {
	AuthURL(state string) string
	HandleCallback(ctx context.Context, code string) (*services.LoginResponse, error)
}

const oauthStateCookie = "oauth_state"

// OAuthHandler handles the Google OAuth login flow
type OAuthHandler struct {
	service   OAuthServiceInterface
	secureTLS bool
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(service OAuthServiceInterface, secureTLS bool) *OAuthHandler {
	return &OAuthHandler{service: service, secureTLS: secureTLS}
}

// Begin redirects to the provider's consent screen with a random state
// bound to the browser via a short-lived cookie.
func (h *OAuthHandler) Begin(w http.ResponseWriter, r *http.Request) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	state := base64.RawURLEncoding.EncodeToString(raw)

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.secureTLS,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback finishes the provider flow and returns a session
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		pkghttp.WriteBadRequest(w, "OAuth state mismatch")
		return
	}

	// State is single-use
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureTLS,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		pkghttp.WriteBadRequest(w, "Missing authorization code")
		return
	}

	resp, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrOAuthEmailMissing):
			pkghttp.WriteBadRequest(w, "The provider did not share an email address")
		case errors.Is(err, models.ErrExternalService):
			pkghttp.WriteServiceUnavailable(w, "The identity provider is unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
