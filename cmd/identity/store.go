package identity

import (
	"context"
	"time"
)

// User is loft's canonical security principal.
type User struct {
	ID       string
	Username string
	Email    *string
	Profile  Profile

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth couples a user with its stored credential.
// IMPORTANT: PasswordHash is a PHC-encoded Argon2id hash and must never be
// logged or serialized to clients.
type UserAuth struct {
	User
	PasswordHash string
}

// CreateUserInput describes a registration request.
// The password is hashed by the caller; stores only persist the hash.
type CreateUserInput struct {
	Username     string
	Email        *string
	PasswordHash string
	Profile      Profile
	Now          time.Time
}

// Directory is the user persistence boundary.
//
// Contract:
//   - Lookups return NotFoundError (wrapping ErrNotFound) for missing rows.
//   - CreateUser and UpdateUsername return ConflictError with a stable Field
//     on uniqueness violations ("username", "email").
//   - DeleteUser is idempotent only at the HTTP layer; the store itself
//     reports ErrNotFound so callers can decide.
type Directory interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error)
	GetUserAuthByID(ctx context.Context, id string) (UserAuth, error)

	UpdateProfile(ctx context.Context, userID string, patch ProfilePatch, now time.Time) (User, error)
	UpdateUsername(ctx context.Context, userID string, username string, now time.Time) (User, error)
	UpdatePassword(ctx context.Context, userID string, passwordHash string, now time.Time) error

	DeleteUser(ctx context.Context, userID string) error
}
