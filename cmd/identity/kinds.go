package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")

	// ErrCorruptCredential reports a stored password hash that cannot be
	// parsed. It is an operational fault, never a user-facing mismatch.
	ErrCorruptCredential = errors.New("corrupt_credential")
)
