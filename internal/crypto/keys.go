package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyLength is the derived key size in bytes (AES-256)
	KeyLength = 32
	// SaltLength is the per-record salt size in bytes
	SaltLength = 16
	// MinIterations is the lowest PBKDF2 cost accepted at configuration time
	MinIterations = 10000
	// DefaultIterations is the cost applied to newly written records
	DefaultIterations = 65536
)

// Deriver produces per-record encryption keys from a user's password via
// PBKDF2-HMAC-SHA256. The pepper is a deployment-wide secret appended to
// the password before derivation; it never varies per record and is never
// stored alongside the ciphertext. The iteration count here is the cost
// for new records only; decryption always replays the count persisted in
// the record, so raising the default never breaks existing data.
type Deriver struct {
	pepper     string
	iterations int
}

// NewDeriver creates a Deriver with the given pepper and default cost.
func NewDeriver(pepper string, iterations int) (*Deriver, error) {
	if iterations < MinIterations {
		return nil, fmt.Errorf("iteration count must be at least %d, got %d", MinIterations, iterations)
	}

	return &Deriver{
		pepper:     pepper,
		iterations: iterations,
	}, nil
}

// Derive computes a 256-bit key from password, salt, and iteration count.
// The same inputs always reproduce the same key.
func (d *Deriver) Derive(password string, salt []byte, iterations int) []byte {
	peppered := password + d.pepper
	return pbkdf2.Key([]byte(peppered), salt, iterations, KeyLength, sha256.New)
}

// GenerateSalt returns a fresh 16-byte random salt.
func (d *Deriver) GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Iterations returns the cost applied to newly encrypted records.
func (d *Deriver) Iterations() int {
	return d.iterations
}
