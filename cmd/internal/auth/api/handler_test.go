package authapi

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

	"loft/cmd/identity"
	"loft/cmd/internal/auth/session"
	"loft/cmd/security/password"
)

type testEnv struct {
	mux    *http.ServeMux
	h      *Handler
	users  *identity.MemoryDirectory
	emails *captureEmailSender
}

type captureEmailSender struct {
	msgs []PasswordResetMessage
}

func (c *captureEmailSender) SendPasswordReset(_ context.Context, msg PasswordResetMessage) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
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
	store := session.NewMemoryStore()

	svc, err := session.NewService(sessCfg, users, store, tokens, pw)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	cfg := Config{
		RefreshCookieName: "refreshToken",
		CookiePath:        "/",
		CookieSecure:      false,
		MaxBodyBytes:      1 << 20,
	}

	emails := &captureEmailSender{}
	h, err := NewHandler(slog.New(slog.DiscardHandler), cfg, svc, users, WithEmailSender(emails))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{mux: mux, h: h, users: users, emails: emails}
}

func (e *testEnv) do(t *testing.T, method, path, body string, mod func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if mod != nil {
		mod(req)
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(t *testing.T, username, pass string) (access string, refreshCookie *http.Cookie) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/user/create",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, pass), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("signup decode: %v", err)
	}
	c := findCookie(rec, "refreshToken")
	if c == nil || c.Value == "" {
		t.Fatal("signup did not set the refresh cookie")
	}
	return resp.AccessToken, c
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func TestSignupSetsCookieAndDuplicateIs400(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	_, cookie := e.signup(t, "alice", "correct horse battery")

	if !cookie.HttpOnly {
		t.Error("refresh cookie must be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Error("refresh cookie must be SameSite=Strict")
	}
	if cookie.MaxAge <= 0 {
		t.Errorf("refresh cookie Max-Age = %d, want positive", cookie.MaxAge)
	}

	rec := e.do(t, http.MethodPost, "/user/create",
		`{"username":"ALICE","password":"another password"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate signup status = %d", rec.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/user/create", `{"username":"","password":"long enough pw"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing username status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/user/create", `{"username":"bob","password":"short"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("weak password status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/user/create", `not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}
}

func TestLoginFailuresAreIdentical404s(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.signup(t, "alice", "correct horse battery")

	unknown := e.do(t, http.MethodPost, "/user/login", `{"username":"nobody","password":"whatever pw"}`, nil)
	wrongPw := e.do(t, http.MethodPost, "/user/login", `{"username":"alice","password":"wrong password"}`, nil)

	if unknown.Code != http.StatusNotFound || wrongPw.Code != http.StatusNotFound {
		t.Fatalf("statuses = %d / %d, want 404 / 404", unknown.Code, wrongPw.Code)
	}
	if unknown.Body.String() != wrongPw.Body.String() {
		t.Fatalf("bodies differ:\n%s\n%s", unknown.Body.String(), wrongPw.Body.String())
	}
}

func TestLoginThenMe(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.signup(t, "alice", "correct horse battery")

	rec := e.do(t, http.MethodPost, "/user/login", `{"username":"alice","password":"correct horse battery"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if findCookie(rec, "refreshToken") == nil {
		t.Fatal("login did not set the refresh cookie")
	}

	me := e.do(t, http.MethodGet, "/user/me", "", withBearer(resp.AccessToken))
	if me.Code != http.StatusOK {
		t.Fatalf("me status = %d", me.Code)
	}
	var meResp meResponse
	if err := json.Unmarshal(me.Body.Bytes(), &meResp); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if meResp.User.Username != "alice" {
		t.Fatalf("me username = %q", meResp.User.Username)
	}
}

func TestAccessGateStatusContract(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	access, _ := e.signup(t, "alice", "correct horse battery")

	if rec := e.do(t, http.MethodGet, "/user/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/user/me", "", withBearer("garbage")); rec.Code != http.StatusForbidden {
		t.Fatalf("bad token: status = %d, want 403", rec.Code)
	}

	// Valid token whose principal has been deleted.
	u, err := e.users.GetUserAuthByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if err := e.users.DeleteUser(context.Background(), u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec := e.do(t, http.MethodGet, "/user/me", "", withBearer(access)); rec.Code != http.StatusNotFound {
		t.Fatalf("gone principal: status = %d, want 404", rec.Code)
	}
}

func TestRefreshRotationSingleUse(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	_, rt0 := e.signup(t, "alice", "correct horse battery")

	// No cookie at all.
	if rec := e.do(t, http.MethodPost, "/user/refresh", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no cookie: status = %d, want 401", rec.Code)
	}

	// First use succeeds and replaces the cookie.
	rec := e.do(t, http.MethodPost, "/user/refresh", "", withCookie(rt0))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp refreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("no access token from refresh")
	}
	rt1 := findCookie(rec, "refreshToken")
	if rt1 == nil || rt1.Value == "" || rt1.Value == rt0.Value {
		t.Fatal("refresh did not rotate the cookie")
	}

	// The consumed token is dead.
	if rec := e.do(t, http.MethodPost, "/user/refresh", "", withCookie(rt0)); rec.Code != http.StatusForbidden {
		t.Fatalf("reuse: status = %d, want 403", rec.Code)
	}

	// The replacement still works.
	if rec := e.do(t, http.MethodPost, "/user/refresh", "", withCookie(rt1)); rec.Code != http.StatusOK {
		t.Fatalf("second rotation: status = %d", rec.Code)
	}
}

func TestRefreshUnknownCookieIs403(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.signup(t, "alice", "correct horse battery")

	bogus := &http.Cookie{Name: "refreshToken", Value: "not-a-real-token"}
	if rec := e.do(t, http.MethodPost, "/user/refresh", "", withCookie(bogus)); rec.Code != http.StatusForbidden {
		t.Fatalf("bogus cookie: status = %d, want 403", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	_, rt := e.signup(t, "alice", "correct horse battery")

	rec := e.do(t, http.MethodPost, "/user/logout", "", withCookie(rt))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	cleared := findCookie(rec, "refreshToken")
	if cleared == nil || cleared.MaxAge != -1 {
		t.Fatal("logout did not clear the cookie")
	}

	if rec := e.do(t, http.MethodPost, "/user/refresh", "", withCookie(rt)); rec.Code != http.StatusForbidden {
		t.Fatalf("refresh after logout: status = %d, want 403", rec.Code)
	}

	// Logout without a cookie still succeeds.
	if rec := e.do(t, http.MethodPost, "/user/logout", "", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("cookieless logout: status = %d", rec.Code)
	}
}

func TestUpdateGeneralPatchesProfile(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	access, _ := e.signup(t, "alice", "correct horse battery")

	rec := e.do(t, http.MethodPatch, "/user/update/general",
		`{"goals":[{"text":"ship it"}],"clickCounts":[1,2]}`, withBearer(access))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.User.Profile.Goals) != 1 || resp.User.Profile.Goals[0].Text != "ship it" {
		t.Fatalf("goals = %+v", resp.User.Profile.Goals)
	}

	// A later patch leaves unrelated fields alone.
	rec = e.do(t, http.MethodPatch, "/user/update/general",
		`{"rooms":[{"roomId":"r1"}]}`, withBearer(access))
	if rec.Code != http.StatusOK {
		t.Fatalf("second update status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.User.Profile.Goals) != 1 || len(resp.User.Profile.Rooms) != 1 {
		t.Fatalf("profile = %+v", resp.User.Profile)
	}

	// Empty patch is rejected.
	if rec := e.do(t, http.MethodPatch, "/user/update/general", `{}`, withBearer(access)); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch status = %d", rec.Code)
	}
}

func TestUpdateGeneralChangesUsername(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	access, _ := e.signup(t, "alice", "correct horse battery")
	e.signup(t, "bob", "another password 1")

	// A taken name is a 400, same as duplicate signup.
	rec := e.do(t, http.MethodPatch, "/user/update/general",
		`{"username":"BOB"}`, withBearer(access))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("taken username status = %d body=%s", rec.Code, rec.Body.String())
	}

	// Rename, optionally alongside a profile patch.
	rec = e.do(t, http.MethodPatch, "/user/update/general",
		`{"username":"alice2","clickCounts":[7]}`, withBearer(access))
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.Username != "alice2" {
		t.Fatalf("username = %q, want alice2", resp.User.Username)
	}
	if len(resp.User.Profile.ClickCounts) != 1 || resp.User.Profile.ClickCounts[0] != 7 {
		t.Fatalf("clickCounts = %+v", resp.User.Profile.ClickCounts)
	}

	// The old name is dead for login, the new one works.
	if rec := e.do(t, http.MethodPost, "/user/login", `{"username":"alice","password":"correct horse battery"}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("old username still logs in: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/user/login", `{"username":"alice2","password":"correct horse battery"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("new username rejected: %d", rec.Code)
	}

	// Blank username is invalid input, not "nothing to update".
	if rec := e.do(t, http.MethodPatch, "/user/update/general", `{"username":"  "}`, withBearer(access)); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank username status = %d", rec.Code)
	}
}

func TestUpdatePassword(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	access, _ := e.signup(t, "alice", "correct horse battery")

	rec := e.do(t, http.MethodPatch, "/user/update/password",
		`{"currentPassword":"wrong password","newPassword":"next password 123"}`, withBearer(access))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong current: status = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodPatch, "/user/update/password",
		`{"currentPassword":"correct horse battery","newPassword":"next password 123"}`, withBearer(access))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("change status = %d body=%s", rec.Code, rec.Body.String())
	}

	if rec := e.do(t, http.MethodPost, "/user/login", `{"username":"alice","password":"correct horse battery"}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("old password still works: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/user/login", `{"username":"alice","password":"next password 123"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("new password rejected: %d", rec.Code)
	}
}

func TestDeleteAccount(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	access, _ := e.signup(t, "alice", "correct horse battery")

	rec := e.do(t, http.MethodDelete, "/user/delete", `{"password":"wrong password"}`, withBearer(access))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong password: status = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodDelete, "/user/delete", `{"password":"correct horse battery"}`, withBearer(access))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	if rec := e.do(t, http.MethodGet, "/user/me", "", withBearer(access)); rec.Code != http.StatusNotFound {
		t.Fatalf("me after delete: status = %d, want 404", rec.Code)
	}
}

func TestPasswordForgotAlways202(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/user/create",
		`{"username":"alice","email":"alice@example.com","password":"correct horse battery"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d", rec.Code)
	}

	known := e.do(t, http.MethodPost, "/user/password/forgot", `{"email":"alice@example.com"}`, nil)
	unknown := e.do(t, http.MethodPost, "/user/password/forgot", `{"email":"nobody@example.com"}`, nil)

	if known.Code != http.StatusAccepted || unknown.Code != http.StatusAccepted {
		t.Fatalf("statuses = %d / %d, want 202 / 202", known.Code, unknown.Code)
	}
	if len(e.emails.msgs) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(e.emails.msgs))
	}
	if e.emails.msgs[0].Email != "alice@example.com" || e.emails.msgs[0].ResetToken == "" {
		t.Fatalf("email = %+v", e.emails.msgs[0])
	}
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/user/create",
		`{"username":"alice","email":"alice@example.com","password":"correct horse battery"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d", rec.Code)
	}

	if rec := e.do(t, http.MethodPost, "/user/password/forgot", `{"email":"alice@example.com"}`, nil); rec.Code != http.StatusAccepted {
		t.Fatalf("forgot status = %d", rec.Code)
	}
	if len(e.emails.msgs) != 1 {
		t.Fatalf("no reset email captured")
	}
	token := e.emails.msgs[0].ResetToken

	rec = e.do(t, http.MethodPost, "/user/password/reset",
		fmt.Sprintf(`{"token":%q,"newPassword":"reset password 123"}`, token), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d body=%s", rec.Code, rec.Body.String())
	}

	if rec := e.do(t, http.MethodPost, "/user/login", `{"username":"alice","password":"reset password 123"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("login after reset: %d", rec.Code)
	}

	// Garbage tokens are 403.
	rec = e.do(t, http.MethodPost, "/user/password/reset",
		`{"token":"garbage","newPassword":"another password 1"}`, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("garbage token status = %d, want 403", rec.Code)
	}
}

func TestSaveUserDataBeacon(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	access, _ := e.signup(t, "alice", "correct horse battery")

	rec := e.do(t, http.MethodPost, "/user/saveUserData",
		`{"clickCounts":[9,9,9]}`, withBearer(access))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("beacon status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("beacon wrote a body: %s", rec.Body.String())
	}

	me := e.do(t, http.MethodGet, "/user/me", "", withBearer(access))
	var resp meResponse
	if err := json.Unmarshal(me.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.User.Profile.ClickCounts) != 3 || resp.User.Profile.ClickCounts[0] != 9 {
		t.Fatalf("clickCounts = %+v", resp.User.Profile.ClickCounts)
	}

	// Empty beacon is accepted quietly.
	if rec := e.do(t, http.MethodPost, "/user/saveUserData", `{}`, withBearer(access)); rec.Code != http.StatusNoContent {
		t.Fatalf("empty beacon status = %d", rec.Code)
	}
}
