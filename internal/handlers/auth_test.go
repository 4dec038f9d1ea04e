package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/handlers"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/BradenHooton/tresor/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func newTestTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager(testJWTSecret, 24*time.Hour, 5*time.Minute)
	require.NoError(t, err)
	return tm
}

func TestLogin_PendingSecondFactor(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, remoteIP string) (*services.LoginResponse, error) {
			return &services.LoginResponse{
				MFARequired:  true,
				MFAMethod:    services.MFAMethodEmailCode,
				PendingToken: "pending-token",
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, newTestTokenManager(t), nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "Str0ng!Pass",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.MFARequired)
	assert.Equal(t, "pending-token", resp.PendingToken)
	assert.Empty(t, resp.SessionToken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, remoteIP string) (*services.LoginResponse, error) {
			return nil, models.ErrInvalidCredentials
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, newTestTokenManager(t), nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "wrong",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_LockedAccount(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, remoteIP string) (*services.LoginResponse, error) {
			return nil, models.ErrAccountLocked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, newTestTokenManager(t), nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "Str0ng!Pass",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
}

func TestLogin_MalformedBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, newTestTokenManager(t), nil)

	req := httptest.NewRequest("POST", "/auth/login", nil)
	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestVerifyEmailCode_Success(t *testing.T) {
	tm := newTestTokenManager(t)
	pending, err := tm.IssuePending("user-1", "user@example.com")
	require.NoError(t, err)

	mockAuth := &handlers.MockAuthService{
		VerifyEmailCodeFunc: func(ctx context.Context, userID, code, remoteIP string) (*services.LoginResponse, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, "123456", code)
			return &services.LoginResponse{SessionToken: "session-token"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, tm, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/verify-code", handlers.VerifyCodeRequest{
		PendingToken: pending,
		Code:         "123456",
	})

	w := httptest.NewRecorder()
	handler.VerifyEmailCode(w, req)

	var resp services.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "session-token", resp.SessionToken)
}

func TestVerifyEmailCode_SessionTokenRejectedAsPendingMarker(t *testing.T) {
	tm := newTestTokenManager(t)
	session, err := tm.IssueSession("user-1", "user@example.com", "user")
	require.NoError(t, err)

	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, tm, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/verify-code", handlers.VerifyCodeRequest{
		PendingToken: session,
		Code:         "123456",
	})

	w := httptest.NewRecorder()
	handler.VerifyEmailCode(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestVerifyEmailCode_WrongCode(t *testing.T) {
	tm := newTestTokenManager(t)
	pending, err := tm.IssuePending("user-1", "user@example.com")
	require.NoError(t, err)

	mockAuth := &handlers.MockAuthService{
		VerifyEmailCodeFunc: func(ctx context.Context, userID, code, remoteIP string) (*services.LoginResponse, error) {
			return nil, models.ErrInvalidOrExpiredCode
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, tm, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/verify-code", handlers.VerifyCodeRequest{
		PendingToken: pending,
		Code:         "999999",
	})

	w := httptest.NewRecorder()
	handler.VerifyEmailCode(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRegister_ConflictLooksLikeSuccess(t *testing.T) {
	success := httptest.NewRecorder()
	conflict := httptest.NewRecorder()
	tm := newTestTokenManager(t)

	okService := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest, remoteIP string) (*services.UserResponse, error) {
			return &services.UserResponse{ID: "user-1"}, nil
		},
	}
	conflictService := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest, remoteIP string) (*services.UserResponse, error) {
			return nil, models.ErrConflict
		},
	}

	body := services.RegisterRequest{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "Str0ng!Pass",
	}

	handlers.NewAuthHandler(okService, tm, nil).Register(success, handlers.NewTestRequest(t, "POST", "/auth/register", body))
	handlers.NewAuthHandler(conflictService, tm, nil).Register(conflict, handlers.NewTestRequest(t, "POST", "/auth/register", body))

	// An attacker cannot tell a fresh registration from a duplicate email
	assert.Equal(t, success.Code, conflict.Code)
	assert.Equal(t, success.Body.String(), conflict.Body.String())
}
