package models

import (
	"time"
)

// PasswordResetToken is an opaque single-use token emailed to a user who
// requested a password reset. At most one live token exists per user;
// issuing a new one atomically replaces the old.
type PasswordResetToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the token has expired
func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
