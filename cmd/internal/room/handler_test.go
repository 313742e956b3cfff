package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"loft/cmd/identity"
	"loft/cmd/internal/auth/session"
	"loft/cmd/security/password"
)

type roomTestEnv struct {
	mux    *http.ServeMux
	rooms  *MemoryStore
	access string
}

func newRoomTestEnv(t *testing.T) *roomTestEnv {
	t.Helper()

	sessCfg := session.DefaultConfig()
	sessCfg.AccessSecret = strings.Repeat("a", 32)
	sessCfg.RefreshSecret = strings.Repeat("r", 32)

	tokens, err := session.NewHS256Manager(sessCfg)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}

	pw := password.Config{
		Params: password.Argon2idParams{
			MemoryKiB:   8 * 1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: password.Policy{MinLength: 8, MaxLength: 256},
	}

	users := identity.NewMemoryDirectory()
	svc, err := session.NewService(sessCfg, users, session.NewMemoryStore(), tokens, pw)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()

	hash, err := pw.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := users.CreateUser(ctx, identity.CreateUserInput{
		Username:     "alice",
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	issued, err := svc.IssueFor(ctx, now, u.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rooms := NewMemoryStore()
	h, err := NewHandler(slog.New(slog.DiscardHandler), svc, rooms)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	return &roomTestEnv{mux: mux, rooms: rooms, access: issued.AccessToken}
}

func (e *roomTestEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.access)
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *roomTestEnv) create(t *testing.T, body string) roomResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/room/create", body, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp roomEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Room
}

func TestCreateRoom(t *testing.T) {
	t.Parallel()

	e := newRoomTestEnv(t)

	created := e.create(t, `{"roomId":"plan-42","usernames":["alice"],"title":"Sprint"}`)
	if created.RoomID != "plan-42" || created.Title != "Sprint" {
		t.Fatalf("room = %+v", created)
	}

	// Missing room id.
	if rec := e.do(t, http.MethodPost, "/room/create", `{"title":"no id"}`, false); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing id status = %d", rec.Code)
	}

	// Duplicate id.
	if rec := e.do(t, http.MethodPost, "/room/create", `{"roomId":"plan-42"}`, false); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
}

func TestFindUsersIsPublicAndTotal(t *testing.T) {
	t.Parallel()

	e := newRoomTestEnv(t)
	e.create(t, `{"roomId":"plan-42","usernames":["alice","bob"]}`)

	rec := e.do(t, http.MethodGet, "/room/findUsers/plan-42", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp findUsersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Usernames) != 2 {
		t.Fatalf("usernames = %v", resp.Usernames)
	}

	// Absent rooms answer an empty list, not 404.
	rec = e.do(t, http.MethodGet, "/room/findUsers/nope", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("absent status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Usernames == nil || len(resp.Usernames) != 0 {
		t.Fatalf("usernames = %#v, want empty list", resp.Usernames)
	}
}

func TestGetRoomRequiresAuth(t *testing.T) {
	t.Parallel()

	e := newRoomTestEnv(t)
	e.create(t, `{"roomId":"plan-42"}`)

	if rec := e.do(t, http.MethodGet, "/room/plan-42", "", false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	rec := e.do(t, http.MethodGet, "/room/plan-42", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	if rec := e.do(t, http.MethodGet, "/room/nope", "", true); rec.Code != http.StatusNotFound {
		t.Fatalf("absent status = %d, want 404", rec.Code)
	}
}

func TestGetRoomRejectsBadToken(t *testing.T) {
	t.Parallel()

	e := newRoomTestEnv(t)
	e.create(t, `{"roomId":"plan-42"}`)

	req := httptest.NewRequest(http.MethodGet, "/room/plan-42", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestUpdateRoom(t *testing.T) {
	t.Parallel()

	e := newRoomTestEnv(t)
	e.create(t, `{"roomId":"plan-42","title":"before","usernames":["alice"]}`)

	rec := e.do(t, http.MethodPatch, "/room/update/plan-42",
		`{"title":"after","toDoListsCheckbox":[true,false]}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp roomEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Room.Title != "after" || len(resp.Room.ToDoCheck) != 2 {
		t.Fatalf("room = %+v", resp.Room)
	}
	if len(resp.Room.Usernames) != 1 {
		t.Fatalf("usernames clobbered: %v", resp.Room.Usernames)
	}

	if rec := e.do(t, http.MethodPatch, "/room/update/nope", `{"title":"x"}`, true); rec.Code != http.StatusNotFound {
		t.Fatalf("absent status = %d, want 404", rec.Code)
	}
	if rec := e.do(t, http.MethodPatch, "/room/update/plan-42", `{}`, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch status = %d, want 400", rec.Code)
	}
	if rec := e.do(t, http.MethodPatch, "/room/update/plan-42", `{"title":"x"}`, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}
}

func TestDeleteRoomIsIdempotent(t *testing.T) {
	t.Parallel()

	e := newRoomTestEnv(t)
	e.create(t, `{"roomId":"plan-42"}`)

	if rec := e.do(t, http.MethodDelete, "/room/delete/plan-42", "", false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	if rec := e.do(t, http.MethodDelete, "/room/delete/plan-42", "", true); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/room/delete/plan-42", "", true); rec.Code != http.StatusNoContent {
		t.Fatalf("second delete status = %d", rec.Code)
	}
	if e.rooms.Len() != 0 {
		t.Fatalf("rooms left = %d", e.rooms.Len())
	}
}

func TestRoomLifecycleEndToEnd(t *testing.T) {
	t.Parallel()

	e := newRoomTestEnv(t)

	for i := 0; i < 3; i++ {
		e.create(t, fmt.Sprintf(`{"roomId":"room-%d","usernames":["alice"]}`, i))
	}
	if e.rooms.Len() != 3 {
		t.Fatalf("rooms = %d", e.rooms.Len())
	}

	rec := e.do(t, http.MethodGet, "/room/room-1", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	if rec := e.do(t, http.MethodDelete, "/room/delete/room-1", "", true); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/room/room-1", "", true); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rec.Code)
	}
}
