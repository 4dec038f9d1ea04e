package models

import (
	"time"
)

type User struct {
	ID                 string
	FirstName          string
	LastName           string
	Email              string // unique
	PasswordHash       string // bcrypt, never plaintext
	MFAEnabled         bool
	OAuthProvider      string // "" for local accounts
	OAuthID            string // provider subject id
	Role               string // "user", "admin"
	FailedAttempts     int
	LockedUntil        *time.Time
	PasswordChangedAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsOAuthLinked reports whether the account is backed by an external
// identity provider. Linked accounts bypass the email second factor.
func (u *User) IsOAuthLinked() bool {
	return u.OAuthProvider != "" && u.OAuthID != ""
}

// IsLocked reports whether a temporary attempt lockout is in effect.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}
