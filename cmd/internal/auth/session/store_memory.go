package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
// Safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]Record
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]Record)}
}

func (m *MemoryStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byHash[rec.RefreshTokenHash] = rec
	return nil
}

func (m *MemoryStore) FindByTokenHash(ctx context.Context, hash string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byHash[hash]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byHash[hash]; !ok {
		return false, nil
	}
	delete(m.byHash, hash)
	return true, nil
}

func (m *MemoryStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for h, rec := range m.byHash {
		if rec.UserID == userID {
			delete(m.byHash, h)
		}
	}
	return nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for h, rec := range m.byHash {
		if !rec.ExpiresAt.After(now) {
			delete(m.byHash, h)
			n++
		}
	}
	return n, nil
}

// Len reports the number of live records (test helper).
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

var _ Store = (*MemoryStore)(nil)
