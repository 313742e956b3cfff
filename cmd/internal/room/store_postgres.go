package room

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Member lists and checkbox states live in array columns, the rest of the
// room content is plain text.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var schemaIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "loft").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("room: empty schema")
		}
		if !schemaIdentRe.MatchString(schema) {
			return fmt.Errorf("room: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{
		pool:   pool,
		schema: "loft",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, fmt.Errorf("room: nil pool")
	}
	return s, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "rooms"}.Sanitize()
}

func (s *PostgresStore) check(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("room: nil store")
	}
	return ctx.Err()
}

// Create inserts a new room row.
func (s *PostgresStore) Create(ctx context.Context, in CreateRoomInput) (Room, error) {
	if err := s.check(ctx); err != nil {
		return Room{}, err
	}

	id := NormalizeID(in.ID)
	if id == "" {
		return Room{}, fmt.Errorf("room: create: %w: missing room id", ErrInvalidInput)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	r := Room{
		ID:        id,
		Usernames: append([]string(nil), in.Usernames...),
		Title:     in.Title,
		Date:      in.Date,
		Comments:  in.Comments,
		ToDoLists: in.ToDoLists,
		ToDoCheck: append([]bool(nil), in.ToDoCheck...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (
		     room_id, usernames, title, date, comments, todo_lists, todo_checks,
		     created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		r.ID, r.Usernames, r.Title, r.Date, r.Comments, r.ToDoLists, r.ToDoCheck, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Room{}, fmt.Errorf("room: create %q: %w", id, ErrExists)
		}
		return Room{}, err
	}
	return r, nil
}

// Get loads a room by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Room, error) {
	if err := s.check(ctx); err != nil {
		return Room{}, err
	}
	id = NormalizeID(id)
	if id == "" {
		return Room{}, fmt.Errorf("room: get: %w: missing room id", ErrInvalidInput)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT room_id, usernames, title, date, comments, todo_lists, todo_checks,
		        created_at, updated_at
		   FROM `+s.table()+`
		  WHERE room_id = $1`,
		id,
	)
	return scanRoom(row)
}

// Update applies a patch under a row lock and returns the updated room.
func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch, now time.Time) (Room, error) {
	if err := s.check(ctx); err != nil {
		return Room{}, err
	}
	id = NormalizeID(id)
	if id == "" {
		return Room{}, fmt.Errorf("room: update: %w: missing room id", ErrInvalidInput)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Room{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT room_id, usernames, title, date, comments, todo_lists, todo_checks,
		        created_at, updated_at
		   FROM `+s.table()+`
		  WHERE room_id = $1
		  FOR UPDATE`,
		id,
	)
	r, err := scanRoom(row)
	if err != nil {
		return Room{}, err
	}

	patch.apply(&r)
	r.UpdatedAt = now

	_, err = tx.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET usernames = $1, title = $2, date = $3, comments = $4,
		        todo_lists = $5, todo_checks = $6, updated_at = $7
		  WHERE room_id = $8`,
		r.Usernames, r.Title, r.Date, r.Comments, r.ToDoLists, r.ToDoCheck, now, id,
	)
	if err != nil {
		return Room{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Room{}, err
	}
	return r, nil
}

// Delete removes a room row, reporting whether one existed.
func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}
	id = NormalizeID(id)
	if id == "" {
		return false, fmt.Errorf("room: delete: %w: missing room id", ErrInvalidInput)
	}

	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE room_id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func scanRoom(row pgx.Row) (Room, error) {
	var r Room
	err := row.Scan(
		&r.ID,
		&r.Usernames,
		&r.Title,
		&r.Date,
		&r.Comments,
		&r.ToDoLists,
		&r.ToDoCheck,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, err
	}
	return r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
