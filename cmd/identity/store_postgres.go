package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory implements Directory over PostgreSQL.
//
// Notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are quoted via pgx.Identifier.
//   - The profile bag is a single jsonb column; patches are read-modify-write
//     inside a transaction holding the row lock.
type PostgresDirectory struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the directory.
type PostgresOption func(*PostgresDirectory) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the directory (default "loft").
// The schema name must be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(d *PostgresDirectory) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		d.schema = schema
		return nil
	}
}

// NewPostgresDirectory constructs a PostgresDirectory.
func NewPostgresDirectory(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresDirectory, error) {
	d := &PostgresDirectory{
		pool:   pool,
		schema: "loft",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return d, nil
}

// CreateUser creates a user row and its credentials transactionally.
func (d *PostgresDirectory) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if d == nil || d.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, pgInvalid(op, "username is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, pgInvalid(op, "password hash is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	usernameNorm := NormalizeUsername(username)

	email := pgTrimPtr(in.Email)
	var emailNorm *string
	if email != nil {
		n := NormalizeEmail(*email)
		emailNorm = &n
	}

	profile := in.Profile
	profile.SchemaVersion = ProfileSchemaVersion
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return User{}, fmt.Errorf("%s: encode profile: %w", op, err)
	}

	userID, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	users := pgIdent(d.schema, "users")
	creds := pgIdent(d.schema, "user_credentials")

	_, err = tx.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, username, username_norm, email, email_norm, profile, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		userID,
		username,
		usernameNorm,
		email,
		emailNorm,
		profileJSON,
		now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+creds+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		userID, in.PasswordHash, now,
	)
	if err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}

	return User{
		ID:        userID,
		Username:  username,
		Email:     email,
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetUserByID loads a user row by primary key.
func (d *PostgresDirectory) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if err := d.check(ctx, op); err != nil {
		return User{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, pgInvalid(op, "missing user id")
	}

	users := pgIdent(d.schema, "users")
	row := d.pool.QueryRow(ctx,
		`SELECT id, username, email, profile, created_at, updated_at
		   FROM `+users+`
		  WHERE id = $1`,
		id,
	)
	return scanUser(row, op, "user")
}

// GetUserByEmail loads a user by normalized email.
func (d *PostgresDirectory) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	if err := d.check(ctx, op); err != nil {
		return User{}, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return User{}, pgInvalid(op, "missing email")
	}

	users := pgIdent(d.schema, "users")
	row := d.pool.QueryRow(ctx,
		`SELECT id, username, email, profile, created_at, updated_at
		   FROM `+users+`
		  WHERE email_norm = $1`,
		norm,
	)
	return scanUser(row, op, "user")
}

// GetUserAuthByUsername loads a user and its credential by normalized username.
func (d *PostgresDirectory) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	const op = "identity.GetUserAuthByUsername"

	if err := d.check(ctx, op); err != nil {
		return UserAuth{}, err
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return UserAuth{}, pgInvalid(op, "missing username")
	}

	row := d.pool.QueryRow(ctx, d.authQuery()+` WHERE u.username_norm = $1`, norm)
	return scanUserAuth(row, op)
}

// GetUserAuthByID loads a user and its credential by user id.
func (d *PostgresDirectory) GetUserAuthByID(ctx context.Context, id string) (UserAuth, error) {
	const op = "identity.GetUserAuthByID"

	if err := d.check(ctx, op); err != nil {
		return UserAuth{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return UserAuth{}, pgInvalid(op, "missing user id")
	}

	row := d.pool.QueryRow(ctx, d.authQuery()+` WHERE u.id = $1`, id)
	return scanUserAuth(row, op)
}

func (d *PostgresDirectory) authQuery() string {
	users := pgIdent(d.schema, "users")
	creds := pgIdent(d.schema, "user_credentials")
	return `SELECT u.id, u.username, u.email, u.profile, u.created_at, u.updated_at, c.password_hash
	          FROM ` + users + ` u
	          JOIN ` + creds + ` c ON c.user_id = u.id`
}

// UpdateProfile applies a partial profile patch under a row lock and returns
// the updated user.
func (d *PostgresDirectory) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch, now time.Time) (User, error) {
	const op = "identity.UpdateProfile"

	if err := d.check(ctx, op); err != nil {
		return User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, pgInvalid(op, "missing user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	users := pgIdent(d.schema, "users")

	var out User
	var profileRaw []byte
	err = tx.QueryRow(ctx,
		`SELECT id, username, email, profile, created_at, updated_at
		   FROM `+users+`
		  WHERE id = $1
		  FOR UPDATE`,
		userID,
	).Scan(&out.ID, &out.Username, &out.Email, &profileRaw, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}

	if len(profileRaw) > 0 {
		if err := json.Unmarshal(profileRaw, &out.Profile); err != nil {
			return User{}, fmt.Errorf("%s: decode profile: %w", op, err)
		}
	}

	out.Profile.Apply(patch)
	out.UpdatedAt = now

	newRaw, err := json.Marshal(out.Profile)
	if err != nil {
		return User{}, fmt.Errorf("%s: encode profile: %w", op, err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE `+users+`
		    SET profile = $1, updated_at = $2
		  WHERE id = $3`,
		newRaw, now, userID,
	)
	if err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return out, nil
}

// UpdateUsername renames a user and returns the updated row. The unique
// index on username_norm arbitrates concurrent claims of the same name.
func (d *PostgresDirectory) UpdateUsername(ctx context.Context, userID string, username string, now time.Time) (User, error) {
	const op = "identity.UpdateUsername"

	if err := d.check(ctx, op); err != nil {
		return User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, pgInvalid(op, "missing user id")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, pgInvalid(op, "username is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	users := pgIdent(d.schema, "users")

	row := d.pool.QueryRow(ctx,
		`UPDATE `+users+`
		    SET username = $1, username_norm = $2, updated_at = $3
		  WHERE id = $4
		  RETURNING id, username, email, profile, created_at, updated_at`,
		username, NormalizeUsername(username), now, userID,
	)
	u, err := scanUser(row, op, "user")
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

// UpdatePassword replaces the stored credential hash.
func (d *PostgresDirectory) UpdatePassword(ctx context.Context, userID string, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePassword"

	if err := d.check(ctx, op); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return pgInvalid(op, "missing user id")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return pgInvalid(op, "missing password hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	creds := pgIdent(d.schema, "user_credentials")

	ct, err := d.pool.Exec(ctx,
		`UPDATE `+creds+`
		    SET password_hash = $1, updated_at = $2
		  WHERE user_id = $3`,
		passwordHash, now, userID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// DeleteUser removes a user row. Credentials and sessions follow via
// ON DELETE CASCADE.
func (d *PostgresDirectory) DeleteUser(ctx context.Context, userID string) error {
	const op = "identity.DeleteUser"

	if err := d.check(ctx, op); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return pgInvalid(op, "missing user id")
	}

	users := pgIdent(d.schema, "users")

	ct, err := d.pool.Exec(ctx, `DELETE FROM `+users+` WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// ---- helpers ----

func (d *PostgresDirectory) check(ctx context.Context, op string) error {
	if d == nil || d.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	return ctx.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, op, resource string) (User, error) {
	var out User
	var profileRaw []byte
	err := row.Scan(&out.ID, &out.Username, &out.Email, &profileRaw, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: resource}
		}
		return User{}, err
	}
	if len(profileRaw) > 0 {
		if err := json.Unmarshal(profileRaw, &out.Profile); err != nil {
			return User{}, fmt.Errorf("%s: decode profile: %w", op, err)
		}
	}
	return out, nil
}

func scanUserAuth(row rowScanner, op string) (UserAuth, error) {
	var out UserAuth
	var profileRaw []byte
	err := row.Scan(
		&out.ID,
		&out.Username,
		&out.Email,
		&profileRaw,
		&out.CreatedAt,
		&out.UpdatedAt,
		&out.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, err
	}
	if len(profileRaw) > 0 {
		if err := json.Unmarshal(profileRaw, &out.Profile); err != nil {
			return UserAuth{}, fmt.Errorf("%s: decode profile: %w", op, err)
		}
	}
	return out, nil
}

// pgTrimPtr trims a string pointer, returning nil if the result is empty.
func pgTrimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "uq_users_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
