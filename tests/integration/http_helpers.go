package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/crypto"
	"github.com/BradenHooton/tresor/internal/database"
	"github.com/BradenHooton/tresor/internal/handlers"
	middlewareCustom "github.com/BradenHooton/tresor/internal/middleware"
	"github.com/BradenHooton/tresor/internal/routes"
	"github.com/BradenHooton/tresor/internal/services"
	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To    string
	Code  string
	Token string
}

// MockEmailService captures sent emails for test assertions
type MockEmailService struct {
	mu     sync.Mutex
	emails []SentEmail
}

func (m *MockEmailService) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, SentEmail{To: email, Code: code})
	return nil
}

func (m *MockEmailService) SendPasswordResetLink(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, SentEmail{To: email, Token: token})
	return nil
}

// LastEmail returns the most recent email sent, or nil
func (m *MockEmailService) LastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.emails) == 0 {
		return nil
	}
	last := m.emails[len(m.emails)-1]
	return &last
}

// EmailCount returns how many emails have been sent
func (m *MockEmailService) EmailCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails)
}

// TestServer wraps httptest.Server with the full service graph over a
// real database and a captured email transport.
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	EmailService *MockEmailService
	TokenManager *auth.TokenManager
}

const testJWTSecret = "test-secret-32-characters-long!!"

// NewTestServer initializes a complete HTTP server with real database + mocked email
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	userRepo, secretRepo, codeRepo, resetRepo, twoFactorRepo := InitializeRepositories(db)

	mockEmail := &MockEmailService{}

	tokenManager, err := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 5*time.Minute)
	if err != nil {
		return nil, err
	}

	deriver, err := crypto.NewDeriver("integration-pepper", crypto.MinIterations)
	if err != nil {
		return nil, err
	}
	envelope := crypto.NewEnvelope(deriver)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// No padding so the suite stays fast
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{})

	totpManager, err := auth.NewTOTPManager([]byte("test-mfa-encryption-key-32-char!"), "TresorTest")
	if err != nil {
		return nil, err
	}
	codeService := services.NewCodeService(codeRepo, mockEmail, 10*time.Minute, logger)
	totpService := services.NewTOTPService(twoFactorRepo, userRepo, totpManager, logger, auditLogger)
	secretService := services.NewSecretService(secretRepo, userRepo, envelope, logger, auditLogger)
	userService := services.NewUserService(userRepo, secretService, logger, auditLogger)
	resetService := services.NewPasswordResetService(resetRepo, userRepo, secretService, mockEmail, 1*time.Hour, logger, auditLogger)
	oauthService := services.NewOAuthService(userRepo, tokenManager, "test-client", "test-secret", "http://localhost/callback", logger, auditLogger)
	authService := services.NewAuthService(userRepo, codeService, totpService, services.NoopCaptchaVerifier{}, tokenManager, timingDelay,
		services.LockoutPolicy{MaxAttempts: 5, Duration: 15 * time.Minute},
		logger, auditLogger)

	authHandler := handlers.NewAuthHandler(authService, tokenManager, nil)
	secretHandler := handlers.NewSecretHandler(secretService)
	resetHandler := handlers.NewPasswordResetHandler(resetService)
	twoFactorHandler := handlers.NewTwoFactorHandler(totpService)
	oauthHandler := handlers.NewOAuthHandler(oauthService, false)
	userHandler := handlers.NewUserHandler(userService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Generous limits so the suite itself is never throttled
	routes.RegisterRoutes(r, authHandler, secretHandler, resetHandler, twoFactorHandler, oauthHandler, userHandler, tokenManager,
		routes.Config{
			AuthRateLimit: middlewareCustom.RateLimitConfig{RequestsPerMinute: 10000},
			APIRateLimit:  middlewareCustom.RateLimitConfig{RequestsPerMinute: 10000},
		})

	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		DB:           db,
		EmailService: mockEmail,
		TokenManager: tokenManager,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, sessionToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + sessionToken,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses a JSON response body into target
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// LoginResult holds the fields of a login or verification response
type LoginResult struct {
	MFARequired  bool   `json:"mfa_required"`
	MFAMethod    string `json:"mfa_method,omitempty"`
	PendingToken string `json:"pending_token,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
}

// CompleteLogin runs the full password + email-code flow and returns a
// session token ready for protected requests.
func (ts *TestServer) CompleteLogin(ctx context.Context, db *TestDB, email, password string) (string, error) {
	resp, err := ts.Request("POST", "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if err != nil {
		return "", err
	}

	var login LoginResult
	if err := ParseJSONResponse(resp, &login); err != nil {
		return "", err
	}
	if !login.MFARequired {
		return login.SessionToken, nil
	}

	userID, err := UserIDByEmail(ctx, db.Pool, email)
	if err != nil {
		return "", err
	}
	code, err := LatestVerificationCode(ctx, db.Pool, userID)
	if err != nil {
		return "", err
	}

	resp, err = ts.Request("POST", "/auth/verify-code", map[string]string{
		"pending_token": login.PendingToken,
		"code":          code,
	}, nil)
	if err != nil {
		return "", err
	}

	var verified LoginResult
	if err := ParseJSONResponse(resp, &verified); err != nil {
		return "", err
	}
	return verified.SessionToken, nil
}
