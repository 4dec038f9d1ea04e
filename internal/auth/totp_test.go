package auth

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTOTPKey = []byte("test-mfa-encryption-key-32-char!")

func newTestTOTPManager(t *testing.T) *TOTPManager {
	t.Helper()

	tm, err := NewTOTPManager(testTOTPKey, "Tresor")
	require.NoError(t, err)
	return tm
}

func TestNewTOTPManager_RejectsShortKey(t *testing.T) {
	_, err := NewTOTPManager([]byte("too-short"), "Tresor")
	assert.Error(t, err)
}

func TestTOTPManager_GenerateSecret(t *testing.T) {
	tm := newTestTOTPManager(t)

	secret, url, err := tm.GenerateSecret("a@b.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, url, "otpauth://totp/")
	assert.Contains(t, url, "Tresor")

	other, _, err := tm.GenerateSecret("a@b.com")
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestTOTPManager_EncryptSecret_RoundTrip(t *testing.T) {
	tm := newTestTOTPManager(t)

	secret, _, err := tm.GenerateSecret("a@b.com")
	require.NoError(t, err)

	encrypted, err := tm.EncryptSecret(secret)
	require.NoError(t, err)
	assert.NotEqual(t, secret, encrypted)
	assert.NotContains(t, encrypted, secret)

	decrypted, err := tm.DecryptSecret(encrypted)
	require.NoError(t, err)
	assert.Equal(t, secret, decrypted)

	// A fresh nonce every call, so identical secrets never repeat on disk
	again, err := tm.EncryptSecret(secret)
	require.NoError(t, err)
	assert.NotEqual(t, encrypted, again)
}

func TestTOTPManager_DecryptSecret_WrongKey(t *testing.T) {
	tm := newTestTOTPManager(t)

	encrypted, err := tm.EncryptSecret("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	other, err := NewTOTPManager([]byte("another-mfa-key-32-characters!!!"), "Tresor")
	require.NoError(t, err)

	_, err = other.DecryptSecret(encrypted)
	assert.Error(t, err)
}

func TestTOTPManager_DecryptSecret_Garbage(t *testing.T) {
	tm := newTestTOTPManager(t)

	_, err := tm.DecryptSecret("not-base64!")
	assert.Error(t, err)

	_, err = tm.DecryptSecret("YQ==")
	assert.Error(t, err)
}

func TestTOTPManager_Validate_CurrentCode(t *testing.T) {
	tm := newTestTOTPManager(t)

	secret, _, err := tm.GenerateSecret("a@b.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	valid, err := tm.Validate(secret, code)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTOTPManager_Validate_AdjacentWindows(t *testing.T) {
	tm := newTestTOTPManager(t)

	secret, _, err := tm.GenerateSecret("a@b.com")
	require.NoError(t, err)

	// ±1 step of drift is accepted
	for _, offset := range []time.Duration{-30 * time.Second, 30 * time.Second} {
		code, err := totp.GenerateCode(secret, time.Now().Add(offset))
		require.NoError(t, err)

		valid, err := tm.Validate(secret, code)
		require.NoError(t, err)
		assert.True(t, valid, "offset %v", offset)
	}
}

func TestTOTPManager_Validate_OutsideWindow(t *testing.T) {
	tm := newTestTOTPManager(t)

	secret, _, err := tm.GenerateSecret("a@b.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now().Add(-5*time.Minute))
	require.NoError(t, err)

	valid, err := tm.Validate(secret, code)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTOTPManager_Validate_WrongCode(t *testing.T) {
	tm := newTestTOTPManager(t)

	secret, _, err := tm.GenerateSecret("a@b.com")
	require.NoError(t, err)

	valid, err := tm.Validate(secret, "000000")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTOTPManager_QRCodeDataURL(t *testing.T) {
	tm := newTestTOTPManager(t)

	_, url, err := tm.GenerateSecret("a@b.com")
	require.NoError(t, err)

	dataURL, err := tm.QRCodeDataURL(url)
	require.NoError(t, err)
	assert.Contains(t, dataURL, "data:image/png;base64,")
}
