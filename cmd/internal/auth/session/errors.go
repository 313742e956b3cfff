package session

import "errors"

var (
	// ErrMissingToken is returned when no token was presented at all.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken is returned when a token fails signature or claim validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotFound is returned when the principal or the session record does
	// not exist. Login failures deliberately collapse into this error so
	// unknown-user and wrong-password are indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	// ErrPasswordMismatch is returned when a re-verification of the current
	// password fails (password change, account deletion).
	ErrPasswordMismatch = errors.New("password mismatch")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
