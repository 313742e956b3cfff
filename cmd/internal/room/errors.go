package room

import "errors"

var (
	// ErrInvalidInput reports a malformed or missing field, usually the room id.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound reports that no room exists under the requested id.
	ErrNotFound = errors.New("room not found")

	// ErrExists reports a create against an id that is already taken.
	ErrExists = errors.New("room already exists")
)
