package models

import (
	"time"
)

// TwoFactorAuth holds a user's TOTP enrollment. The secret is stored
// encrypted; the plaintext is a base32 string compatible with standard
// authenticator apps. Enabled flips to true only after the user proves
// possession with a valid code.
type TwoFactorAuth struct {
	ID        string
	UserID    string
	Secret    string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
