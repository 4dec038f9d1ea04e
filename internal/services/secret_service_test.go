package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/BradenHooton/tresor/internal/crypto"
	"github.com/BradenHooton/tresor/internal/models"
	pkgauth "github.com/BradenHooton/tresor/pkg/auth"
	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

func testEnvelope(t *testing.T) *crypto.Envelope {
	t.Helper()
	deriver, err := crypto.NewDeriver("test-pepper", crypto.MinIterations)
	require.NoError(t, err)
	return crypto.NewEnvelope(deriver)
}

func testUserWithPassword(t *testing.T, id, password string) *models.User {
	t.Helper()
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)
	return &models.User{ID: id, Email: "a@b.com", PasswordHash: hash, Role: "user"}
}

func TestSecretService_CreateAndGet_Roundtrip(t *testing.T) {
	const password = "Str0ng!Pass"
	user := testUserWithPassword(t, "user-1", password)
	envelope := testEnvelope(t)

	stored := map[string]*models.Secret{}
	secretRepo := &MockSecretRepository{
		CreateFunc: func(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
			secret.ID = "secret-1"
			secret.Version = 1
			stored[secret.ID] = secret
			return secret, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.Secret, error) {
			if s, ok := stored[id]; ok {
				return s, nil
			}
			return nil, models.ErrNotFound
		},
	}
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}

	svc := NewSecretService(secretRepo, userRepo, envelope, testLogger(), testAuditLogger())

	created, err := svc.Create(context.Background(), "user-1", password, "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", created.Content)

	got, err := svc.Get(context.Background(), "user-1", created.ID, password)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Content)
	assert.False(t, got.Unreadable)
}

func TestSecretService_Create_WrongPassword(t *testing.T) {
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}

	svc := NewSecretService(&MockSecretRepository{}, userRepo, testEnvelope(t), testLogger(), testAuditLogger())

	_, err := svc.Create(context.Background(), "user-1", "wrong-password", "hunter2")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestSecretService_Get_ForbiddenBeforeDecrypt(t *testing.T) {
	envelope := testEnvelope(t)
	record, err := envelope.Encrypt("hunter2", "Str0ng!Pass")
	require.NoError(t, err)

	secretRepo := &MockSecretRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Secret, error) {
			return &models.Secret{ID: id, UserID: "owner", Content: record}, nil
		},
	}

	svc := NewSecretService(secretRepo, &MockUserRepository{}, envelope, testLogger(), testAuditLogger())

	// The intruder knows the owner's password, but ownership is checked first.
	_, err = svc.Get(context.Background(), "intruder", "secret-1", "Str0ng!Pass")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestSecretService_Get_WrongPasswordDecryptionFails(t *testing.T) {
	envelope := testEnvelope(t)
	record, err := envelope.Encrypt("hunter2", "Str0ng!Pass")
	require.NoError(t, err)

	secretRepo := &MockSecretRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Secret, error) {
			return &models.Secret{ID: id, UserID: "user-1", Content: record}, nil
		},
	}

	svc := NewSecretService(secretRepo, &MockUserRepository{}, envelope, testLogger(), testAuditLogger())

	_, err = svc.Get(context.Background(), "user-1", "secret-1", "Different!Pass1")
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestSecretService_List_IsolatesUnreadableRecords(t *testing.T) {
	const password = "Str0ng!Pass"
	user := testUserWithPassword(t, "user-1", password)
	envelope := testEnvelope(t)

	readable, err := envelope.Encrypt("still here", password)
	require.NoError(t, err)
	orphaned, err := envelope.Encrypt("lost forever", "Old!Passw0rd")
	require.NoError(t, err)

	secretRepo := &MockSecretRepository{
		ListByUserFunc: func(ctx context.Context, userID string) ([]*models.Secret, error) {
			return []*models.Secret{
				{ID: "s1", UserID: userID, Content: readable},
				{ID: "s2", UserID: userID, Content: orphaned},
			}, nil
		},
	}
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}

	svc := NewSecretService(secretRepo, userRepo, envelope, testLogger(), testAuditLogger())

	results, err := svc.List(context.Background(), "user-1", password)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "still here", results[0].Content)
	assert.False(t, results[0].Unreadable)
	assert.True(t, results[1].Unreadable)
	assert.Empty(t, results[1].Content)
}

func TestSecretService_Update_VersionConflict(t *testing.T) {
	const password = "Str0ng!Pass"
	user := testUserWithPassword(t, "user-1", password)
	envelope := testEnvelope(t)

	secretRepo := &MockSecretRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Secret, error) {
			return &models.Secret{ID: id, UserID: "user-1", Version: 3}, nil
		},
		UpdateFunc: func(ctx context.Context, id string, content string, expectedVersion int64) (*models.Secret, error) {
			if expectedVersion != 3 {
				return nil, models.ErrConflict
			}
			return &models.Secret{ID: id, UserID: "user-1", Content: content, Version: 4}, nil
		},
	}
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}

	svc := NewSecretService(secretRepo, userRepo, envelope, testLogger(), testAuditLogger())

	_, err := svc.Update(context.Background(), "user-1", "s1", password, "new content", 2)
	assert.ErrorIs(t, err, models.ErrConflict)

	updated, err := svc.Update(context.Background(), "user-1", "s1", password, "new content", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), updated.Version)
}

func TestSecretService_Delete_Idempotent(t *testing.T) {
	secretRepo := &MockSecretRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Secret, error) {
			return nil, models.ErrNotFound
		},
	}

	svc := NewSecretService(secretRepo, &MockUserRepository{}, testEnvelope(t), testLogger(), testAuditLogger())

	assert.NoError(t, svc.Delete(context.Background(), "user-1", "already-gone"))
}

func TestSecretService_Delete_ForbiddenForNonOwner(t *testing.T) {
	secretRepo := &MockSecretRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Secret, error) {
			return &models.Secret{ID: id, UserID: "owner"}, nil
		},
	}

	svc := NewSecretService(secretRepo, &MockUserRepository{}, testEnvelope(t), testLogger(), testAuditLogger())

	assert.ErrorIs(t, svc.Delete(context.Background(), "intruder", "s1"), models.ErrForbidden)
}

func TestSecretService_RekeyOwner(t *testing.T) {
	const oldPassword = "Old!Passw0rd"
	const newPassword = "New!Passw0rd"
	envelope := testEnvelope(t)

	record, err := envelope.Encrypt("carry me over", oldPassword)
	require.NoError(t, err)

	var committedHash string
	var committedContents map[string]string
	secretRepo := &MockSecretRepository{
		ListByUserFunc: func(ctx context.Context, userID string) ([]*models.Secret, error) {
			return []*models.Secret{{ID: "s1", UserID: userID, Content: record}}, nil
		},
	}
	userRepo := &MockUserRepository{
		UpdatePasswordWithSecretsFunc: func(ctx context.Context, id, passwordHash string, contents map[string]string) error {
			committedHash = passwordHash
			committedContents = contents
			return nil
		},
	}

	svc := NewSecretService(secretRepo, userRepo, envelope, testLogger(), testAuditLogger())

	require.NoError(t, svc.RekeyOwner(context.Background(), "user-1", oldPassword, newPassword, "new-hash"))
	assert.Equal(t, "new-hash", committedHash)
	require.Contains(t, committedContents, "s1")

	plaintext, err := envelope.Decrypt(committedContents["s1"], newPassword)
	require.NoError(t, err)
	assert.Equal(t, "carry me over", plaintext)

	_, err = envelope.Decrypt(committedContents["s1"], oldPassword)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}
