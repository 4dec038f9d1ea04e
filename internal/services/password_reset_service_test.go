package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/tresor/internal/models"
	pkgauth "github.com/BradenHooton/tresor/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resetFixture struct {
	tokens  *MockResetTokenRepository
	users   *MockUserRepository
	secrets *MockSecretRepository
	email   *MockEmailService
	svc     *PasswordResetService
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()

	f := &resetFixture{
		tokens:  &MockResetTokenRepository{},
		users:   &MockUserRepository{},
		secrets: &MockSecretRepository{},
		email:   &MockEmailService{},
	}

	secretSvc := NewSecretService(f.secrets, f.users, testEnvelope(t), testLogger(), testAuditLogger())
	f.svc = NewPasswordResetService(f.tokens, f.users, secretSvc, f.email, time.Hour, testLogger(), testAuditLogger())
	return f
}

func TestPasswordResetService_Request_UnknownEmailReportsSuccess(t *testing.T) {
	f := newResetFixture(t)

	sent := false
	f.email.SendPasswordResetLinkFunc = func(ctx context.Context, email, token string, expiresAt time.Time) error {
		sent = true
		return nil
	}

	assert.NoError(t, f.svc.Request(context.Background(), "nobody@b.com"))
	assert.False(t, sent)
}

func TestPasswordResetService_Request_ReplacesPriorToken(t *testing.T) {
	f := newResetFixture(t)
	user := testUserWithPassword(t, "user-1", "Str0ng!Pass")

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var tokens []string
	f.tokens.ReplaceForUserFunc = func(ctx context.Context, token *models.PasswordResetToken) (*models.PasswordResetToken, error) {
		tokens = append(tokens, token.Token)
		return token, nil
	}

	require.NoError(t, f.svc.Request(context.Background(), "a@b.com"))
	require.NoError(t, f.svc.Request(context.Background(), "a@b.com"))

	require.Len(t, tokens, 2)
	assert.NotEqual(t, tokens[0], tokens[1])
}

func TestPasswordResetService_Validate_UnknownToken(t *testing.T) {
	f := newResetFixture(t)

	assert.ErrorIs(t, f.svc.Validate(context.Background(), "bogus"), models.ErrInvalidOrExpiredCode)
}

// storedResetToken wires the mock repo to behave like the real one: the
// row is readable until Consume deletes it.
func storedResetToken(f *resetFixture, userID, token string) {
	live := true
	row := &models.PasswordResetToken{UserID: userID, Token: token, ExpiresAt: time.Now().Add(time.Hour)}

	f.tokens.GetByTokenFunc = func(ctx context.Context, got string) (*models.PasswordResetToken, error) {
		if !live || got != token {
			return nil, models.ErrNotFound
		}
		return row, nil
	}
	f.tokens.ConsumeFunc = func(ctx context.Context, got string) (*models.PasswordResetToken, error) {
		if !live || got != token {
			return nil, models.ErrInvalidOrExpiredCode
		}
		live = false
		return row, nil
	}
}

func TestPasswordResetService_Complete_ConsumesToken(t *testing.T) {
	f := newResetFixture(t)
	storedResetToken(f, "user-1", "live-token")

	var newHash string
	f.users.UpdatePasswordFunc = func(ctx context.Context, id, passwordHash string) error {
		newHash = passwordHash
		return nil
	}

	require.NoError(t, f.svc.Complete(context.Background(), "live-token", "New!Passw0rd", ""))
	assert.NoError(t, pkgauth.ComparePassword(newHash, "New!Passw0rd"))

	// Second use of the same token fails
	err := f.svc.Complete(context.Background(), "live-token", "Other!Passw0rd1", "")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredCode)
}

func TestPasswordResetService_Complete_WeakPasswordRejectedBeforeConsume(t *testing.T) {
	f := newResetFixture(t)

	f.tokens.ConsumeFunc = func(ctx context.Context, token string) (*models.PasswordResetToken, error) {
		t.Fatal("token must not be consumed when the new password fails policy")
		return nil, nil
	}

	assert.Error(t, f.svc.Complete(context.Background(), "live-token", "weak", ""))
}

func TestPasswordResetService_Complete_WithOldPasswordRekeys(t *testing.T) {
	f := newResetFixture(t)
	const oldPassword = "Old!Passw0rd"
	user := testUserWithPassword(t, "user-1", oldPassword)

	envelope := testEnvelope(t)
	record, err := envelope.Encrypt("keep me", oldPassword)
	require.NoError(t, err)

	storedResetToken(f, "user-1", "live-token")
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}
	f.secrets.ListByUserFunc = func(ctx context.Context, userID string) ([]*models.Secret, error) {
		return []*models.Secret{{ID: "s1", UserID: userID, Content: record}}, nil
	}

	var committed map[string]string
	f.users.UpdatePasswordWithSecretsFunc = func(ctx context.Context, id, passwordHash string, contents map[string]string) error {
		committed = contents
		return nil
	}

	require.NoError(t, f.svc.Complete(context.Background(), "live-token", "New!Passw0rd", oldPassword))
	require.Contains(t, committed, "s1")

	plaintext, err := envelope.Decrypt(committed["s1"], "New!Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, "keep me", plaintext)
}

func TestPasswordResetService_Complete_WrongOldPasswordKeepsTokenAlive(t *testing.T) {
	f := newResetFixture(t)
	const oldPassword = "Old!Passw0rd"
	user := testUserWithPassword(t, "user-1", oldPassword)

	storedResetToken(f, "user-1", "live-token")
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	rekeyed := false
	f.users.UpdatePasswordWithSecretsFunc = func(ctx context.Context, id, passwordHash string, contents map[string]string) error {
		rekeyed = true
		return nil
	}

	// A typo in the old password must not burn the single-use link
	err := f.svc.Complete(context.Background(), "live-token", "New!Passw0rd", "Typo!Passw0rd")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.False(t, rekeyed)

	// The corrected retry succeeds with the same token
	require.NoError(t, f.svc.Complete(context.Background(), "live-token", "New!Passw0rd", oldPassword))
	assert.True(t, rekeyed)

	// And only then is the token gone
	err = f.svc.Complete(context.Background(), "live-token", "New!Passw0rd", oldPassword)
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredCode)
}
