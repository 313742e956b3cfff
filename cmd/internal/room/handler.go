package room

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"loft/cmd/identity"
	"loft/cmd/internal/auth/session"
)

// Authenticator gates requests on a bearer access token.
// *session.Service satisfies it.
type Authenticator interface {
	RequireAccess(ctx context.Context, now time.Time, accessToken string) (identity.User, error)
}

// Handler wires the room HTTP endpoints to the store.
//
// Create and findUsers are public so that a joining client can set up or
// inspect a room before its user logs in. Everything else requires a token.
type Handler struct {
	log   *slog.Logger
	auth  Authenticator
	rooms Store

	maxBodyBytes int64
}

// NewHandler constructs a room Handler.
func NewHandler(log *slog.Logger, auth Authenticator, rooms Store) (*Handler, error) {
	if auth == nil || rooms == nil {
		return nil, errors.New("room: nil authenticator or store")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:          log,
		auth:         auth,
		rooms:        rooms,
		maxBodyBytes: 1 << 20,
	}, nil
}

// Register wires the room routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /room/create", h.handleCreate)
	mux.HandleFunc("GET /room/findUsers/{roomId}", h.handleFindUsers)
	mux.HandleFunc("GET /room/{roomId}", h.handleGet)
	mux.HandleFunc("PATCH /room/update/{roomId}", h.handleUpdate)
	mux.HandleFunc("DELETE /room/delete/{roomId}", h.handleDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if NormalizeID(req.RoomID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "room id is required")
		return
	}

	created, err := h.rooms.Create(r.Context(), CreateRoomInput{
		ID:        req.RoomID,
		Usernames: req.Usernames,
		Title:     req.Title,
		Date:      req.Date,
		Comments:  req.Comments,
		ToDoLists: req.ToDoLists,
		ToDoCheck: req.ToDoCheck,
		Now:       time.Now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrExists):
			writeError(w, http.StatusConflict, "already_exists", "room id is already taken")
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", "room id is required")
		default:
			h.log.Error("room.create.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("room.create.ok", "room_id", created.ID)
	writeJSON(w, http.StatusCreated, roomEnvelope{Room: toRoomResponse(created)})
}

// handleFindUsers lists a room's member usernames. An absent room answers an
// empty list, not a 404, so clients can poll before the room exists.
func (h *Handler) handleFindUsers(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("roomId")

	got, err := h.rooms.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			writeJSON(w, http.StatusOK, findUsersResponse{Usernames: []string{}})
			return
		}
		h.log.Error("room.find_users.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	usernames := got.Usernames
	if usernames == nil {
		usernames = []string{}
	}
	writeJSON(w, http.StatusOK, findUsersResponse{Usernames: usernames})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	got, err := h.rooms.Get(r.Context(), r.PathValue("roomId"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "room not found")
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", "room id is required")
		default:
			h.log.Error("room.get.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, roomEnvelope{Room: toRoomResponse(got)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	var req patchRoomRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	patch := req.toPatch()
	if patch.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	id := r.PathValue("roomId")
	updated, err := h.rooms.Update(r.Context(), id, patch, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "room not found")
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", "room id is required")
		default:
			h.log.Error("room.update.fail", "err", err, "room_id", id)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, roomEnvelope{Room: toRoomResponse(updated)})
}

// handleDelete removes a room. Deleting a room that is already gone still
// answers 204.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	id := r.PathValue("roomId")
	deleted, err := h.rooms.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid_request", "room id is required")
			return
		}
		h.log.Error("room.delete.fail", "err", err, "room_id", id)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if deleted {
		h.log.Info("room.delete.ok", "room_id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireUser gates a request on a valid bearer access token.
// Status contract: 401 missing, 403 invalid, 404 principal gone.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	token := bearerToken(r)

	u, err := h.auth.RequireAccess(r.Context(), time.Now().UTC(), token)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrMissingToken):
			writeError(w, http.StatusUnauthorized, "missing_token", "missing bearer token")
		case errors.Is(err, session.ErrInvalidToken):
			writeError(w, http.StatusForbidden, "invalid_token", "invalid or expired token")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "user not found")
		default:
			h.log.Error("room.require.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return identity.User{}, false
	}
	return u, true
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
