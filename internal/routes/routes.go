package routes

import (
	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/handlers"
	"github.com/BradenHooton/tresor/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Config carries the per-group rate limits. Zero values fall back to
// the package defaults.
type Config struct {
	AuthRateLimit middleware.RateLimitConfig
	APIRateLimit  middleware.RateLimitConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	secretHandler *handlers.SecretHandler,
	resetHandler *handlers.PasswordResetHandler,
	twoFactorHandler *handlers.TwoFactorHandler,
	oauthHandler *handlers.OAuthHandler,
	userHandler *handlers.UserHandler,
	tokenManager *auth.TokenManager,
	cfg Config,
) {
	if cfg.AuthRateLimit.RequestsPerMinute <= 0 {
		cfg.AuthRateLimit = middleware.DefaultAuthRateLimit()
	}
	if cfg.APIRateLimit.RequestsPerMinute <= 0 {
		cfg.APIRateLimit = middleware.DefaultAPIRateLimit()
	}

	authLimit := middleware.RateLimitByIP(cfg.AuthRateLimit)
	apiLimit := middleware.RateLimitByIP(cfg.APIRateLimit)

	// Public routes - credential-guessing surfaces get the tight limit
	router.Group(func(r chi.Router) {
		r.Use(authLimit)

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/verify-code", authHandler.VerifyEmailCode)
		r.Post("/auth/verify-totp", authHandler.VerifyTOTP)
		r.Post("/auth/resend-code", authHandler.ResendCode)

		r.Post("/password-reset/request", resetHandler.Request)
		r.Post("/password-reset/validate", resetHandler.Validate)
		r.Post("/password-reset/complete", resetHandler.Complete)

		r.Get("/auth/oauth/google", oauthHandler.Begin)
		r.Get("/auth/oauth/google/callback", oauthHandler.Callback)
	})

	// Protected routes - a completed session is required
	router.Group(func(r chi.Router) {
		r.Use(apiLimit)
		r.Use(auth.Middleware(tokenManager))

		r.Get("/users/me", userHandler.Me)
		r.Put("/users/me", userHandler.UpdateMe)
		r.Post("/users/me/password", userHandler.ChangePassword)

		// Reads are POST: the vault password travels in the body, never the URL
		r.Post("/secrets", secretHandler.Create)
		r.Post("/secrets/list", secretHandler.List)
		r.Post("/secrets/{id}/reveal", secretHandler.Get)
		r.Put("/secrets/{id}", secretHandler.Update)
		r.Delete("/secrets/{id}", secretHandler.Delete)

		r.Post("/2fa/setup", twoFactorHandler.Setup)
		r.Post("/2fa/enable", twoFactorHandler.Enable)
		r.Post("/2fa/disable", twoFactorHandler.Disable)
		r.Get("/2fa/status", twoFactorHandler.Status)
	})
}
