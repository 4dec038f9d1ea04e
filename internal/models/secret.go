package models

import (
	"time"
)

// Secret is an encrypted record owned by a single user. Content is the
// opaque envelope-cipher record string; the stored form never equals the
// plaintext. Version is bumped on every rewrite and used for
// compare-and-swap updates.
type Secret struct {
	ID        string
	UserID    string
	Content   string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DecryptedSecret pairs a secret id with its recovered plaintext. A
// listing isolates per-item decryption failures instead of aborting, so
// Unreadable is set (and Content empty) when a record cannot be opened
// with the owner's current password material.
type DecryptedSecret struct {
	ID         string `json:"id"`
	Content    string `json:"content,omitempty"`
	Unreadable bool   `json:"unreadable,omitempty"`
}
