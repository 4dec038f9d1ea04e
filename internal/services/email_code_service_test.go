package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/tresor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
		}
		seen[code] = true
	}
	// 100 draws from a million values should essentially never all collide
	assert.Greater(t, len(seen), 90)
}

func TestCodeService_Issue_EmailFailureSurfaces(t *testing.T) {
	codes := &MockVerificationCodeRepository{}
	email := &MockEmailService{
		SendVerificationCodeFunc: func(ctx context.Context, to, code string, expiresAt time.Time) error {
			return assert.AnError
		},
	}

	svc := NewCodeService(codes, email, 10*time.Minute, testLogger())

	err := svc.Issue(context.Background(), &models.User{ID: "user-1", Email: "a@b.com"})
	assert.ErrorIs(t, err, models.ErrExternalService)
}

func TestCodeService_Issue_SetsExpiry(t *testing.T) {
	var created *models.VerificationCode
	codes := &MockVerificationCodeRepository{
		CreateFunc: func(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
			created = code
			return code, nil
		},
	}

	svc := NewCodeService(codes, &MockEmailService{}, 10*time.Minute, testLogger())

	require.NoError(t, svc.Issue(context.Background(), &models.User{ID: "user-1", Email: "a@b.com"}))
	require.NotNil(t, created)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), created.ExpiresAt, time.Minute)
}

func TestCodeService_Consume_RejectsMalformedWithoutRepoCall(t *testing.T) {
	codes := &MockVerificationCodeRepository{
		ConsumeFunc: func(ctx context.Context, userID, code string) error {
			t.Fatal("repository must not be hit for malformed codes")
			return nil
		},
	}

	svc := NewCodeService(codes, &MockEmailService{}, 10*time.Minute, testLogger())

	for _, code := range []string{"", "123", "1234567", "abcdefg"} {
		err := svc.Consume(context.Background(), "user-1", code)
		assert.ErrorIs(t, err, models.ErrInvalidOrExpiredCode, "code %q", code)
	}
}
