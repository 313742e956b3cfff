package room

import (
	"context"
	"strings"
	"time"
)

// Room is a shared planning document. The id is chosen by the caller and is
// the only lookup key. Members are usernames, not user ids.
type Room struct {
	ID        string
	Usernames []string
	Title     string
	Date      string
	Comments  string
	ToDoLists string
	ToDoCheck []bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateRoomInput carries the full initial state of a room.
type CreateRoomInput struct {
	ID        string
	Usernames []string
	Title     string
	Date      string
	Comments  string
	ToDoLists string
	ToDoCheck []bool
	Now       time.Time
}

// Patch is a partial room update. Nil fields are left untouched; a non-nil
// pointer replaces the stored value wholesale, including with an empty slice.
type Patch struct {
	Usernames *[]string
	Title     *string
	Date      *string
	Comments  *string
	ToDoLists *string
	ToDoCheck *[]bool
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Usernames == nil &&
		p.Title == nil &&
		p.Date == nil &&
		p.Comments == nil &&
		p.ToDoLists == nil &&
		p.ToDoCheck == nil
}

func (p Patch) apply(r *Room) {
	if p.Usernames != nil {
		r.Usernames = append([]string(nil), (*p.Usernames)...)
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Comments != nil {
		r.Comments = *p.Comments
	}
	if p.ToDoLists != nil {
		r.ToDoLists = *p.ToDoLists
	}
	if p.ToDoCheck != nil {
		r.ToDoCheck = append([]bool(nil), (*p.ToDoCheck)...)
	}
}

// NormalizeID trims surrounding whitespace from a caller-supplied room id.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// Store persists rooms keyed by their caller-supplied id.
type Store interface {
	// Create inserts a new room. ErrExists when the id is taken,
	// ErrInvalidInput when the id is empty.
	Create(ctx context.Context, in CreateRoomInput) (Room, error)

	// Get returns the room or ErrNotFound.
	Get(ctx context.Context, id string) (Room, error)

	// Update applies a patch and returns the updated room, or ErrNotFound.
	Update(ctx context.Context, id string, patch Patch, now time.Time) (Room, error)

	// Delete removes the room. Deleting an absent room is not an error;
	// the returned bool reports whether anything was removed.
	Delete(ctx context.Context, id string) (bool, error)
}
