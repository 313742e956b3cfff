package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")

	// ErrInvalidHash reports a malformed or unsupported stored hash.
	// Callers should treat this as a corrupt credential, not a mismatch.
	ErrInvalidHash = errors.New("invalid password hash")
)
