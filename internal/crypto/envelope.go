package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Stored record format:
//
//	base64(IV ‖ ciphertext ‖ tag) ### base64(salt) :: iterations
//
// Both separators are guaranteed absent from the base64 alphabet, so a
// plain string split recovers the fields. Embedding the iteration count
// with each record lets the default cost be raised later without a
// migration. A future layout change requires an explicit version tag to
// support mixed-format reads.
const (
	ivLength    = 12
	tagLength   = 16
	recordSep   = "###"
	keyDataSep  = "::"
)

var (
	// ErrMalformedRecord means the record does not have exactly two
	// top-level fields, or the ciphertext field is not valid base64.
	ErrMalformedRecord = errors.New("malformed secret record")

	// ErrMalformedKeyData means the salt/iterations field cannot be parsed.
	ErrMalformedKeyData = errors.New("malformed key data")

	// ErrDecryptionFailed is returned on any GCM authentication failure.
	// A tampered record and a wrong password are indistinguishable to the
	// caller; both surface as this single error.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Envelope encrypts and decrypts secret records using a key derived from
// the owner's password. Every Encrypt call draws a fresh salt and IV, so
// identical plaintext never produces identical records and no IV is ever
// reused under the same key.
type Envelope struct {
	deriver *Deriver
}

// NewEnvelope creates an Envelope backed by the given key deriver.
func NewEnvelope(deriver *Deriver) *Envelope {
	return &Envelope{deriver: deriver}
}

// Encrypt seals plaintext under a key derived from password and returns
// the opaque record string.
func (e *Envelope) Encrypt(plaintext, password string) (string, error) {
	salt, err := e.deriver.GenerateSalt()
	if err != nil {
		return "", err
	}

	iterations := e.deriver.Iterations()
	key := e.deriver.Derive(password, salt, iterations)

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	// Seal appends the 16-byte tag to the ciphertext
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)

	blob := make([]byte, 0, ivLength+len(sealed))
	blob = append(blob, iv...)
	blob = append(blob, sealed...)

	record := base64.StdEncoding.EncodeToString(blob) +
		recordSep +
		base64.StdEncoding.EncodeToString(salt) +
		keyDataSep +
		strconv.Itoa(iterations)

	return record, nil
}

// Decrypt parses a record, re-derives the key from password and the
// embedded salt and iteration count, and opens the ciphertext.
func (e *Envelope) Decrypt(record, password string) (string, error) {
	parts := strings.Split(record, recordSep)
	if len(parts) != 2 {
		return "", ErrMalformedRecord
	}

	// Validate the ciphertext field before the key data so a record that
	// is broken in both ways reports ErrMalformedRecord.
	blob, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformedRecord
	}
	if len(blob) < ivLength+tagLength {
		return "", ErrMalformedRecord
	}

	salt, iterations, err := parseKeyData(parts[1])
	if err != nil {
		return "", err
	}

	key := e.deriver.Derive(password, salt, iterations)

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	iv := blob[:ivLength]
	sealed := blob[ivLength:]

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		// Wrong password and tampering both land here
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// parseKeyData splits "base64(salt)::iterations" into its parts.
func parseKeyData(keyData string) ([]byte, int, error) {
	parts := strings.Split(keyData, keyDataSep)
	if len(parts) != 2 {
		return nil, 0, ErrMalformedKeyData
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(salt) != SaltLength {
		return nil, 0, ErrMalformedKeyData
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return nil, 0, ErrMalformedKeyData
	}

	return salt, iterations, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
