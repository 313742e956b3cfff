package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists refresh records in the sessions table.
// The pgx pool is owned by the caller; this store must NOT close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "loft").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("session: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("session: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "loft",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) sessions() string {
	return pgx.Identifier{s.schema, "sessions"}.Sanitize()
}

// Put inserts a new refresh record.
func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.ID) == "" ||
		strings.TrimSpace(rec.UserID) == "" ||
		strings.TrimSpace(rec.RefreshTokenHash) == "" {
		return fmt.Errorf("session: incomplete record")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.sessions()+` (
		     id, user_id, refresh_token_hash, created_at, expires_at
		   ) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.UserID, rec.RefreshTokenHash, rec.CreatedAt, rec.ExpiresAt,
	)
	return err
}

// FindByTokenHash loads a record by refresh token hash.
// Returns ErrNotFound when no record matches.
func (s *PostgresStore) FindByTokenHash(ctx context.Context, hash string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	var rec Record
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, refresh_token_hash, created_at, expires_at
		   FROM `+s.sessions()+`
		  WHERE refresh_token_hash = $1`,
		hash,
	).Scan(&rec.ID, &rec.UserID, &rec.RefreshTokenHash, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// DeleteByTokenHash removes the record for a hash. The single deleted row is
// the rotation win under concurrency; losers see deleted == false.
func (s *PostgresStore) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ct, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.sessions()+` WHERE refresh_token_hash = $1`,
		hash,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// DeleteAllForUser removes every record for a user (idempotent).
func (s *PostgresStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.sessions()+` WHERE user_id = $1`,
		userID,
	)
	return err
}

// DeleteExpired removes records past their expiry.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ct, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.sessions()+` WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

var _ Store = (*PostgresStore)(nil)
