package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"loft/cmd/identity"
	"loft/cmd/internal/auth/session"
	"loft/cmd/security/password"
)

// Handler wires the user-facing HTTP endpoints to the session service and
// the identity directory.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions *session.Service
	users    identity.Directory

	emailSender EmailSender
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithEmailSender overrides the default no-op email sender.
func WithEmailSender(sender EmailSender) HandlerOption {
	return func(h *Handler) {
		if h == nil || sender == nil {
			return
		}
		h.emailSender = sender
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, users identity.Directory, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if sessions == nil || users == nil {
		return nil, errors.New("authapi: nil session service or directory")
	}

	h := &Handler{
		log:         log,
		cfg:         cfg,
		sessions:    sessions,
		users:       users,
		emailSender: NoopEmailSender{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires the user routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /user/create", h.handleCreate)
	mux.HandleFunc("POST /user/login", h.handleLogin)
	mux.HandleFunc("POST /user/refresh", h.handleRefresh)
	mux.HandleFunc("POST /user/logout", h.handleLogout)
	mux.HandleFunc("GET /user/me", h.handleMe)
	mux.HandleFunc("PATCH /user/update/general", h.handleUpdateGeneral)
	mux.HandleFunc("PATCH /user/update/password", h.handleUpdatePassword)
	mux.HandleFunc("DELETE /user/delete", h.handleDelete)
	mux.HandleFunc("POST /user/password/forgot", h.handlePasswordForgot)
	mux.HandleFunc("POST /user/password/reset", h.handlePasswordReset)
	mux.HandleFunc("POST /user/saveUserData", h.handleSaveUserData)
}

// SessionService returns the underlying session service.
func (h *Handler) SessionService() *session.Service {
	if h == nil {
		return nil
	}
	return h.sessions
}

// ---- handlers ----

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	pw := h.sessions.PasswordConfig()
	hash, err := pw.Hash(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "weak_password", "password does not meet the length policy")
		default:
			h.log.Error("auth.create.hash.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Username:     username,
		Email:        req.Email,
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			// Duplicate signup is a client error, not a conflict, in this API.
			writeError(w, http.StatusBadRequest, "already_exists", "username or email already taken")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("auth.create.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	issued, err := h.sessions.IssueFor(ctx, now, u.ID)
	if err != nil {
		h.log.Error("auth.create.issue.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.create.ok", "user_id", u.ID)
	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	writeJSON(w, http.StatusCreated, authResponse{
		User:            toUserResponse(u),
		AccessToken:     issued.AccessToken,
		AccessExpiresAt: issued.AccessExp,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	issued, u, err := h.sessions.Login(ctx, now, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// One answer for unknown user and wrong password.
			h.log.Info("auth.login.fail")
			writeError(w, http.StatusNotFound, "login_failed", "user not found")
			return
		}
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.login.ok", "user_id", u.ID)
	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	writeJSON(w, http.StatusOK, authResponse{
		User:            toUserResponse(u),
		AccessToken:     issued.AccessToken,
		AccessExpiresAt: issued.AccessExp,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := h.refreshTokenFromCookie(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_refresh", "refresh cookie is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	issued, err := h.sessions.Rotate(ctx, now, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrMissingToken):
			writeError(w, http.StatusUnauthorized, "missing_refresh", "refresh cookie is required")
		case errors.Is(err, session.ErrNotFound):
			// Already used, logged out, or never issued.
			writeError(w, http.StatusForbidden, "invalid_refresh", "refresh token is not valid")
		case errors.Is(err, session.ErrInvalidToken):
			// Forged or expired: the cookie is worthless, drop it.
			h.clearRefreshCookie(w)
			writeError(w, http.StatusForbidden, "invalid_refresh", "refresh token is not valid")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:     issued.AccessToken,
		AccessExpiresAt: issued.AccessExp,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if refreshToken, ok := h.refreshTokenFromCookie(r); ok {
		if err := h.sessions.Logout(r.Context(), refreshToken); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	// Logout without a cookie is still a successful logout.
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleUpdateGeneral(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req profilePatchRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	patch := req.toPatch()
	if req.Username == nil && patch.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	updated := u

	if req.Username != nil {
		renamed, err := h.users.UpdateUsername(ctx, u.ID, *req.Username, now)
		if err != nil {
			h.writeUsernameError(w, err, u.ID)
			return
		}
		updated = renamed
	}

	if !patch.IsZero() {
		var err error
		updated, err = h.users.UpdateProfile(ctx, u.ID, patch, now)
		if err != nil {
			if identity.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "not_found", "user not found")
				return
			}
			h.log.Error("auth.update_general.fail", "err", err, "user_id", u.ID)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(updated)})
}

// writeUsernameError maps a failed rename. A taken name is a client error,
// same as duplicate signup.
func (h *Handler) writeUsernameError(w http.ResponseWriter, err error, userID string) {
	switch {
	case identity.IsConflict(err):
		writeError(w, http.StatusBadRequest, "already_exists", "username already taken")
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid username")
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	default:
		h.log.Error("auth.update_username.fail", "err", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req updatePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "current and new password are required")
		return
	}

	err := h.sessions.ChangePassword(r.Context(), time.Now().UTC(), u.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrPasswordMismatch):
			writeError(w, http.StatusBadRequest, "wrong_password", "current password is incorrect")
		case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "weak_password", "password does not meet the length policy")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "user not found")
		default:
			h.log.Error("auth.update_password.fail", "err", err, "user_id", u.ID)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("auth.update_password.ok", "user_id", u.ID)
	// Every session died with the old password; the cookie is stale now.
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req deleteUserRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "password is required")
		return
	}

	err := h.sessions.DeleteAccount(r.Context(), u.ID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrPasswordMismatch):
			writeError(w, http.StatusForbidden, "wrong_password", "password is incorrect")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "user not found")
		default:
			h.log.Error("auth.delete.fail", "err", err, "user_id", u.ID)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("auth.delete.ok", "user_id", u.ID)
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePasswordForgot(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	// The answer is 202 whether or not the address is known. Only the
	// lookup outcome decides if anything is sent.
	u, err := h.users.GetUserByEmail(ctx, email)
	if err == nil {
		token, exp, issueErr := h.sessions.IssueResetToken(u.ID, now)
		if issueErr != nil {
			h.log.Error("auth.password_forgot.issue.fail", "err", issueErr, "user_id", u.ID)
		} else if sendErr := h.emailSender.SendPasswordReset(ctx, PasswordResetMessage{
			Email:      email,
			Username:   u.Username,
			ResetToken: token,
			ExpiresAt:  exp,
		}); sendErr != nil {
			h.log.Error("auth.password_forgot.send.fail", "err", sendErr, "user_id", u.ID)
		} else {
			h.log.Info("auth.password_forgot.sent", "user_id", u.ID)
		}
	} else if !identity.IsNotFound(err) {
		h.log.Error("auth.password_forgot.lookup.fail", "err", err)
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Token) == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "token and new password are required")
		return
	}

	err := h.sessions.ResetPassword(r.Context(), time.Now().UTC(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrMissingToken), errors.Is(err, session.ErrInvalidToken):
			writeError(w, http.StatusForbidden, "invalid_token", "reset token is not valid")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "user not found")
		case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "weak_password", "password does not meet the length policy")
		default:
			h.log.Error("auth.password_reset.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("auth.password_reset.ok")
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveUserData is the beacon endpoint clients hit on page unload.
// Same semantics as the general update, but it never returns a body.
func (h *Handler) handleSaveUserData(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req profilePatchRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	patch := req.toPatch()
	if req.Username == nil && patch.IsZero() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	if req.Username != nil {
		if _, err := h.users.UpdateUsername(ctx, u.ID, *req.Username, now); err != nil {
			h.writeUsernameError(w, err, u.ID)
			return
		}
	}

	if patch.IsZero() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, err := h.users.UpdateProfile(ctx, u.ID, patch, now); err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.log.Error("auth.save_user_data.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

// requireUser gates a request on a valid bearer access token and loads the
// principal. Status contract: 401 missing, 403 invalid, 404 principal gone.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	token := bearerToken(r)

	u, err := h.sessions.RequireAccess(r.Context(), time.Now().UTC(), token)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrMissingToken):
			writeError(w, http.StatusUnauthorized, "missing_token", "missing bearer token")
		case errors.Is(err, session.ErrInvalidToken):
			writeError(w, http.StatusForbidden, "invalid_token", "invalid or expired token")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "user not found")
		default:
			h.log.Error("auth.require.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return identity.User{}, false
	}
	return u, true
}
