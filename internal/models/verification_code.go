package models

import (
	"time"
)

// VerificationCode is a single-use 6-digit code emailed to a user during
// login. Lookups only ever target the newest unused, unexpired code for a
// user; expired rows are lazily deleted on lookup.
type VerificationCode struct {
	ID        string
	UserID    string
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IsExpired checks if the code has expired
func (c *VerificationCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
