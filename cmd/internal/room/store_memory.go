package room

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured,
// and in tests. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]Room
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]Room)}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateRoomInput) (Room, error) {
	if err := ctx.Err(); err != nil {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; ok {
		return Room{}, fmt.Errorf("room: create %q: %w", id, ErrExists)
	}
	s.rooms[id] = r
	return cloneRoom(r), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}
	id = NormalizeID(id)
	if id == "" {
		return Room{}, fmt.Errorf("room: get: %w: missing room id", ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return cloneRoom(r), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch, now time.Time) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}
	id = NormalizeID(id)
	if id == "" {
		return Room{}, fmt.Errorf("room: update: %w: missing room id", ErrInvalidInput)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}

	patch.apply(&r)
	r.UpdatedAt = now
	s.rooms[id] = r
	return cloneRoom(r), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	id = NormalizeID(id)
	if id == "" {
		return false, fmt.Errorf("room: delete: %w: missing room id", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return false, nil
	}
	delete(s.rooms, id)
	return true, nil
}

// Len reports the number of stored rooms. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func cloneRoom(r Room) Room {
	r.Usernames = append([]string(nil), r.Usernames...)
	r.ToDoCheck = append([]bool(nil), r.ToDoCheck...)
	return r
}

var _ Store = (*MemoryStore)(nil)
