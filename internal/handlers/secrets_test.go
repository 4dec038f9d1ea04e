package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/tresor/internal/crypto"
	"github.com/BradenHooton/tresor/internal/handlers"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSecretCreate_RequiresSession(t *testing.T) {
	handler := handlers.NewSecretHandler(&handlers.MockSecretService{})

	req := handlers.NewTestRequest(t, "POST", "/secrets", handlers.CreateSecretRequest{
		Content: "hunter2", Password: "Str0ng!Pass",
	})

	w := httptest.NewRecorder()
	handler.Create(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestSecretCreate_Success(t *testing.T) {
	mock := &handlers.MockSecretService{
		CreateFunc: func(ctx context.Context, userID, password, content string) (*models.Secret, error) {
			assert.Equal(t, "user-1", userID)
			return &models.Secret{ID: "secret-1", UserID: userID, Version: 1}, nil
		},
	}
	handler := handlers.NewSecretHandler(mock)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/secrets", handlers.CreateSecretRequest{
		Content: "hunter2", Password: "Str0ng!Pass",
	}), "user-1", "a@b.com")

	w := httptest.NewRecorder()
	handler.Create(w, req)

	var resp handlers.SecretResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "secret-1", resp.ID)
	assert.Equal(t, int64(1), resp.Version)
}

func TestSecretGet_DecryptionFailure(t *testing.T) {
	mock := &handlers.MockSecretService{
		GetFunc: func(ctx context.Context, userID, secretID, password string) (*models.DecryptedSecret, error) {
			return nil, crypto.ErrDecryptionFailed
		},
	}
	handler := handlers.NewSecretHandler(mock)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/secrets/secret-1/reveal", handlers.UnlockRequest{
		Password: "Wrong!Passw0rd",
	}), "user-1", "a@b.com")

	w := httptest.NewRecorder()
	handler.Get(w, req)

	handlers.AssertErrorResponse(t, w, 422, "decryption_failed")
}

func TestSecretGet_Forbidden(t *testing.T) {
	mock := &handlers.MockSecretService{
		GetFunc: func(ctx context.Context, userID, secretID, password string) (*models.DecryptedSecret, error) {
			return nil, models.ErrForbidden
		},
	}
	handler := handlers.NewSecretHandler(mock)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/secrets/secret-1/reveal", handlers.UnlockRequest{
		Password: "Str0ng!Pass",
	}), "intruder", "x@b.com")

	w := httptest.NewRecorder()
	handler.Get(w, req)

	handlers.AssertErrorResponse(t, w, 403, "forbidden")
}

func TestSecretUpdate_VersionConflict(t *testing.T) {
	mock := &handlers.MockSecretService{
		UpdateFunc: func(ctx context.Context, userID, secretID, password, content string, expectedVersion int64) (*models.Secret, error) {
			return nil, models.ErrConflict
		},
	}
	handler := handlers.NewSecretHandler(mock)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "PUT", "/secrets/secret-1", handlers.UpdateSecretRequest{
		Content: "new", Password: "Str0ng!Pass", Version: 2,
	}), "user-1", "a@b.com")

	w := httptest.NewRecorder()
	handler.Update(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestSecretDelete_Idempotent(t *testing.T) {
	mock := &handlers.MockSecretService{
		DeleteFunc: func(ctx context.Context, userID, secretID string) error {
			return nil
		},
	}
	handler := handlers.NewSecretHandler(mock)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "DELETE", "/secrets/gone", nil), "user-1", "a@b.com")

	w := httptest.NewRecorder()
	handler.Delete(w, req)

	assert.Equal(t, 204, w.Code)
}

func TestSecretList_UnreadableItemsSurfaced(t *testing.T) {
	mock := &handlers.MockSecretService{
		ListFunc: func(ctx context.Context, userID, password string) ([]*models.DecryptedSecret, error) {
			return []*models.DecryptedSecret{
				{ID: "s1", Content: "ok"},
				{ID: "s2", Unreadable: true},
			}, nil
		},
	}
	handler := handlers.NewSecretHandler(mock)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/secrets/list", handlers.UnlockRequest{
		Password: "Str0ng!Pass",
	}), "user-1", "a@b.com")

	w := httptest.NewRecorder()
	handler.List(w, req)

	var resp struct {
		Secrets []*models.DecryptedSecret `json:"secrets"`
	}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Len(t, resp.Secrets, 2)
	assert.True(t, resp.Secrets[1].Unreadable)
}
