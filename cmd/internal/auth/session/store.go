package session

import (
	"context"
	"time"
)

// Record is one live refresh grant. The plain refresh token is never stored;
// only its hex-encoded hash.
type Record struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Store abstracts persistence for refresh records.
//
// Contract:
//   - Put inserts a new record.
//   - DeleteByTokenHash removes the record for a hash and reports whether a
//     row was removed. It is the rotation arbiter: under concurrent rotation
//     of the same token, exactly one caller observes deleted == true.
//   - DeleteAllForUser removes every record for a user and is idempotent.
type Store interface {
	Put(ctx context.Context, rec Record) error
	FindByTokenHash(ctx context.Context, hash string) (Record, error)
	DeleteByTokenHash(ctx context.Context, hash string) (deleted bool, err error)
	DeleteAllForUser(ctx context.Context, userID string) error

	// DeleteExpired removes records past their expiry, returning the count.
	// Safe to run periodically from a janitor.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
