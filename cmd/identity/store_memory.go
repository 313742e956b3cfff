package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryDirectory is an in-memory Directory for development and tests.
// Safe for concurrent use. Data does not survive process restarts.
type MemoryDirectory struct {
	mu sync.RWMutex

	byID     map[string]*memUser
	byUName  map[string]string // username_norm -> id
	byEmail  map[string]string // email_norm -> id
}

type memUser struct {
	user         User
	passwordHash string
}

// NewMemoryDirectory constructs an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:    make(map[string]*memUser),
		byUName: make(map[string]string),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryDirectory) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username is required"}
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password hash is required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	usernameNorm := NormalizeUsername(username)
	email := pgTrimPtr(in.Email)
	var emailNorm string
	if email != nil {
		emailNorm = NormalizeEmail(*email)
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	profile := in.Profile
	profile.SchemaVersion = ProfileSchemaVersion

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byUName[usernameNorm]; taken {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	if emailNorm != "" {
		if _, taken := m.byEmail[emailNorm]; taken {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
	}

	u := User{
		ID:        id,
		Username:  username,
		Email:     email,
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.byID[id] = &memUser{user: u, passwordHash: in.PasswordHash}
	m.byUName[usernameNorm] = id
	if emailNorm != "" {
		m.byEmail[emailNorm] = id
	}

	return u, nil
}

func (m *MemoryDirectory) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	mu, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return mu.user, nil
}

func (m *MemoryDirectory) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	norm := NormalizeEmail(email)

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[norm]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return m.byID[id].user, nil
}

func (m *MemoryDirectory) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	const op = "identity.GetUserAuthByUsername"

	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	norm := NormalizeUsername(username)

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUName[norm]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	mu := m.byID[id]
	return UserAuth{User: mu.user, PasswordHash: mu.passwordHash}, nil
}

func (m *MemoryDirectory) GetUserAuthByID(ctx context.Context, id string) (UserAuth, error) {
	const op = "identity.GetUserAuthByID"

	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	mu, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	return UserAuth{User: mu.user, PasswordHash: mu.passwordHash}, nil
}

func (m *MemoryDirectory) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch, now time.Time) (User, error) {
	const op = "identity.UpdateProfile"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mu, ok := m.byID[strings.TrimSpace(userID)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	mu.user.Profile.Apply(patch)
	mu.user.UpdatedAt = now
	return mu.user, nil
}

func (m *MemoryDirectory) UpdateUsername(ctx context.Context, userID string, username string, now time.Time) (User, error) {
	const op = "identity.UpdateUsername"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username is required"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	norm := NormalizeUsername(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	mu, ok := m.byID[strings.TrimSpace(userID)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if holder, taken := m.byUName[norm]; taken && holder != mu.user.ID {
		return User{}, ConflictError{Op: op, Field: "username"}
	}

	delete(m.byUName, NormalizeUsername(mu.user.Username))
	mu.user.Username = username
	mu.user.UpdatedAt = now
	m.byUName[norm] = mu.user.ID
	return mu.user, nil
}

func (m *MemoryDirectory) UpdatePassword(ctx context.Context, userID string, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePassword"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(passwordHash) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing password hash"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mu, ok := m.byID[strings.TrimSpace(userID)]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	mu.passwordHash = passwordHash
	mu.user.UpdatedAt = now
	return nil
}

func (m *MemoryDirectory) DeleteUser(ctx context.Context, userID string) error {
	const op = "identity.DeleteUser"

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := strings.TrimSpace(userID)
	mu, ok := m.byID[id]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}

	delete(m.byUName, NormalizeUsername(mu.user.Username))
	if mu.user.Email != nil {
		delete(m.byEmail, NormalizeEmail(*mu.user.Email))
	}
	delete(m.byID, id)
	return nil
}

var _ Directory = (*MemoryDirectory)(nil)
