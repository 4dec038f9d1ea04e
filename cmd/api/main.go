package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/background"
	"github.com/BradenHooton/tresor/internal/config"
	"github.com/BradenHooton/tresor/internal/crypto"
	"github.com/BradenHooton/tresor/internal/database"
	"github.com/BradenHooton/tresor/internal/handlers"
	middlewareCustom "github.com/BradenHooton/tresor/internal/middleware"
	"github.com/BradenHooton/tresor/internal/repositories"
	"github.com/BradenHooton/tresor/internal/routes"
	"github.com/BradenHooton/tresor/internal/services"
	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Run migrations before opening the pool
	if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	secretRepo := repositories.NewSecretRepository(db)
	codeRepo := repositories.NewVerificationCodeRepository(db)
	resetRepo := repositories.NewResetTokenRepository(db)
	twoFactorRepo := repositories.NewTwoFactorRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(codeRepo, resetRepo, logger, cfg.Auth.CleanupInterval)

	// Initialize token manager
	tokenManager, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.Auth.PendingMFATTL)
	if err != nil {
		logger.Error("failed to initialize token manager", slog.Any("error", err))
		os.Exit(1)
	}

	// Envelope cipher for the secret vault
	deriver, err := crypto.NewDeriver(cfg.Encryption.Pepper, cfg.Encryption.Iterations)
	if err != nil {
		logger.Error("failed to initialize key deriver", slog.Any("error", err))
		os.Exit(1)
	}
	envelope := crypto.NewEnvelope(deriver)

	auditLogger := pkglogger.NewAuditLogger(logger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	// Email delivery: SES in real deployments, log-only when unset
	var emailService services.EmailService
	if cfg.Email.AWSRegion != "" && cfg.Server.Env != "development" {
		emailService, err = services.NewAWSSESEmailService(
			cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.BaseURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		emailService = services.NewNoopEmailService(logger)
	}

	// Captcha verification for registration
	var captcha services.CaptchaVerifier = services.NoopCaptchaVerifier{}
	if cfg.Turnstile.Enabled {
		captcha = services.NewTurnstileService(cfg.Turnstile.SecretKey, logger)
	}

	// Initialize services
	totpManager, err := auth.NewTOTPManager([]byte(cfg.MFA.EncryptionKey), "Tresor")
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}
	codeService := services.NewCodeService(codeRepo, emailService, cfg.Auth.CodeTTL, logger)
	totpService := services.NewTOTPService(twoFactorRepo, userRepo, totpManager, logger, auditLogger)
	secretService := services.NewSecretService(secretRepo, userRepo, envelope, logger, auditLogger)
	userService := services.NewUserService(userRepo, secretService, logger, auditLogger)
	resetService := services.NewPasswordResetService(resetRepo, userRepo, secretService, emailService, cfg.Auth.ResetTokenTTL, logger, auditLogger)
	oauthService := services.NewOAuthService(userRepo, tokenManager,
		cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.RedirectURL, logger, auditLogger)
	authService := services.NewAuthService(userRepo, codeService, totpService, captcha, tokenManager, timingDelay,
		services.LockoutPolicy{MaxAttempts: cfg.Auth.MaxFailedAttempts, Duration: cfg.Auth.LockoutDuration},
		logger, auditLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, tokenManager, cfg.Server.TrustedProxies)
	secretHandler := handlers.NewSecretHandler(secretService)
	resetHandler := handlers.NewPasswordResetHandler(resetService)
	twoFactorHandler := handlers.NewTwoFactorHandler(totpService)
	oauthHandler := handlers.NewOAuthHandler(oauthService, cfg.Server.Env == "production")
	userHandler := handlers.NewUserHandler(userService)

	// Setup router
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, secretHandler, resetHandler, twoFactorHandler, oauthHandler, userHandler, tokenManager, routes.Config{})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
