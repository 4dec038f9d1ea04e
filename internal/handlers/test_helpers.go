package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/BradenHooton/tresor/internal/services"
	pkghttp "github.com/BradenHooton/tresor/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds session claims to request context for testing
// authenticated endpoints
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   "user",
		Type:   models.TokenTypeSession,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc        func(ctx context.Context, req services.RegisterRequest, remoteIP string) (*services.UserResponse, error)
	LoginFunc           func(ctx context.Context, email, password, remoteIP string) (*services.LoginResponse, error)
	VerifyEmailCodeFunc func(ctx context.Context, userID, code, remoteIP string) (*services.LoginResponse, error)
	VerifyTOTPFunc      func(ctx context.Context, userID, code, remoteIP string) (*services.LoginResponse, error)
	ResendCodeFunc      func(ctx context.Context, userID string) error
}

func (m *MockAuthService) Register(ctx context.Context, req services.RegisterRequest, remoteIP string) (*services.UserResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.RegisterFunc(ctx, req, remoteIP)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, remoteIP string) (*services.LoginResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password, remoteIP)
}

func (m *MockAuthService) VerifyEmailCode(ctx context.Context, userID, code, remoteIP string) (*services.LoginResponse, error) {
	if m.VerifyEmailCodeFunc == nil {
		return nil, models.ErrInvalidOrExpiredCode
	}
	return m.VerifyEmailCodeFunc(ctx, userID, code, remoteIP)
}

func (m *MockAuthService) VerifyTOTP(ctx context.Context, userID, code, remoteIP string) (*services.LoginResponse, error) {
	if m.VerifyTOTPFunc == nil {
		return nil, models.ErrInvalidOrExpiredCode
	}
	return m.VerifyTOTPFunc(ctx, userID, code, remoteIP)
}

func (m *MockAuthService) ResendCode(ctx context.Context, userID string) error {
	if m.ResendCodeFunc == nil {
		return nil
	}
	return m.ResendCodeFunc(ctx, userID)
}

// MockSecretService implements SecretServiceInterface for testing
type MockSecretService struct {
	CreateFunc func(ctx context.Context, userID, password, content string) (*models.Secret, error)
	GetFunc    func(ctx context.Context, userID, secretID, password string) (*models.DecryptedSecret, error)
	ListFunc   func(ctx context.Context, userID, password string) ([]*models.DecryptedSecret, error)
	UpdateFunc func(ctx context.Context, userID, secretID, password, content string, expectedVersion int64) (*models.Secret, error)
	DeleteFunc func(ctx context.Context, userID, secretID string) error
}

func (m *MockSecretService) Create(ctx context.Context, userID, password, content string) (*models.Secret, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateFunc(ctx, userID, password, content)
}

func (m *MockSecretService) Get(ctx context.Context, userID, secretID, password string) (*models.DecryptedSecret, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, userID, secretID, password)
}

func (m *MockSecretService) List(ctx context.Context, userID, password string) ([]*models.DecryptedSecret, error) {
	if m.ListFunc == nil {
		return []*models.DecryptedSecret{}, nil
	}
	return m.ListFunc(ctx, userID, password)
}

func (m *MockSecretService) Update(ctx context.Context, userID, secretID, password, content string, expectedVersion int64) (*models.Secret, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.UpdateFunc(ctx, userID, secretID, password, content, expectedVersion)
}

func (m *MockSecretService) Delete(ctx context.Context, userID, secretID string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, userID, secretID)
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestFunc  func(ctx context.Context, email string) error
	ValidateFunc func(ctx context.Context, token string) error
	CompleteFunc func(ctx context.Context, token, newPassword, oldPassword string) error
}

func (m *MockPasswordResetService) Request(ctx context.Context, email string) error {
	if m.RequestFunc == nil {
		return nil
	}
	return m.RequestFunc(ctx, email)
}

func (m *MockPasswordResetService) Validate(ctx context.Context, token string) error {
	if m.ValidateFunc == nil {
		return models.ErrInvalidOrExpiredCode
	}
	return m.ValidateFunc(ctx, token)
}

func (m *MockPasswordResetService) Complete(ctx context.Context, token, newPassword, oldPassword string) error {
	if m.CompleteFunc == nil {
		return models.ErrInvalidOrExpiredCode
	}
	return m.CompleteFunc(ctx, token, newPassword, oldPassword)
}
