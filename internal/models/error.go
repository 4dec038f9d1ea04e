package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication flow errors. The message for invalid credentials is
	// identical whether the account exists or not.
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")
	ErrAccountLocked        = errors.New("account is temporarily locked")

	// External collaborator failures (email, OAuth, anti-bot). Retryable
	// by the caller with backoff.
	ErrExternalService = errors.New("external service unavailable")

	// ErrOAuthEmailMissing is returned when the identity provider does not
	// include an email address in its userinfo response.
	ErrOAuthEmailMissing = errors.New("identity provider did not supply an email address")
)
