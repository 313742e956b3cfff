package session

import (
	"context"
	"strings"
	"time"

	"loft/cmd/identity"
	"loft/cmd/security/password"
	"loft/cmd/security/token"
)

// Service implements the high-level session operations for loft.
//
// It verifies credentials, issues token pairs, rotates refresh tokens with
// single-use discipline, and performs password-bound account operations.
type Service struct {
	cfg    Config
	tokens TokenManager
	store  Store
	users  identity.Directory
	pw     password.Config

	// dummyHash is verified against when the user does not exist, so a
	// login failure costs the same whether the username is known or not.
	dummyHash string
}

// Issued is the result of login, signup, or rotation: a short-lived access
// token plus a single-use refresh token.
type Issued struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// NewService constructs a Service.
func NewService(cfg Config, users identity.Directory, store Store, tokens TokenManager, pw password.Config) (*Service, error) {
	if users == nil || store == nil || tokens == nil {
		return nil, ErrConfig
	}

	dummy, err := pw.Hash("loft-dummy-credential-padding")
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:       cfg,
		tokens:    tokens,
		store:     store,
		users:     users,
		pw:        pw,
		dummyHash: dummy,
	}, nil
}

// PasswordConfig exposes the hashing configuration for callers that create
// users (signup goes through identity with a precomputed hash).
func (s *Service) PasswordConfig() password.Config { return s.pw }

// Config exposes the session configuration (TTLs for cookie attributes).
func (s *Service) Config() Config { return s.cfg }

// Login verifies credentials and issues a fresh token pair.
//
// Unknown username and wrong password both return ErrNotFound; callers must
// not be able to distinguish the two. Existing refresh records for the user
// are dropped before the new one is inserted.
func (s *Service) Login(ctx context.Context, now time.Time, username, plainPassword string) (Issued, identity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || plainPassword == "" {
		return Issued{}, identity.User{}, ErrNotFound
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	auth, err := s.users.GetUserAuthByUsername(ctx, username)
	if err != nil {
		if identity.IsNotFound(err) {
			// Burn the same hashing cost as a real verification.
			_, _ = s.pw.Verify(s.dummyHash, plainPassword)
			return Issued{}, identity.User{}, ErrNotFound
		}
		return Issued{}, identity.User{}, err
	}

	ok, err := s.pw.Verify(auth.PasswordHash, plainPassword)
	if err != nil {
		return Issued{}, identity.User{}, err
	}
	if !ok {
		return Issued{}, identity.User{}, ErrNotFound
	}

	issued, err := s.IssueFor(ctx, now, auth.ID)
	if err != nil {
		return Issued{}, identity.User{}, err
	}
	return issued, auth.User, nil
}

// IssueFor drops any existing refresh records for the user and issues a new
// token pair with a backing record.
func (s *Service) IssueFor(ctx context.Context, now time.Time, userID string) (Issued, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if err := s.store.DeleteAllForUser(ctx, userID); err != nil {
		return Issued{}, err
	}
	return s.issuePair(ctx, now, userID)
}

func (s *Service) issuePair(ctx context.Context, now time.Time, userID string) (Issued, error) {
	refreshPlain, refreshExp, err := s.tokens.IssueRefresh(userID, now)
	if err != nil {
		return Issued{}, err
	}

	recID, err := identity.NewULID(now)
	if err != nil {
		return Issued{}, err
	}

	err = s.store.Put(ctx, Record{
		ID:               recID,
		UserID:           userID,
		RefreshTokenHash: token.HashRefreshTokenHex(refreshPlain),
		CreatedAt:        now,
		ExpiresAt:        refreshExp,
	})
	if err != nil {
		return Issued{}, err
	}

	accessPlain, accessExp, err := s.tokens.IssueAccess(userID, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		AccessToken:  accessPlain,
		AccessExp:    accessExp,
		RefreshToken: refreshPlain,
		RefreshExp:   refreshExp,
	}, nil
}

// Rotate exchanges a refresh token for a new pair. Each refresh token is
// usable exactly once.
//
// Failure modes:
//   - ErrMissingToken: nothing was presented.
//   - ErrNotFound: the token is not backed by a store record (already used,
//     logged out, or never issued).
//   - ErrInvalidToken: the record existed but the signature or claims failed.
//     The record is consumed either way.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshPlain string) (Issued, error) {
	refreshPlain = strings.TrimSpace(refreshPlain)
	if refreshPlain == "" {
		return Issued{}, ErrMissingToken
	}
	// Sanity bound against pathological inputs.
	if len(refreshPlain) > 4096 {
		return Issued{}, ErrNotFound
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	hash := token.HashRefreshTokenHex(refreshPlain)

	// Delete first: under concurrent rotation of the same token, exactly one
	// caller wins the record.
	rec, err := s.store.FindByTokenHash(ctx, hash)
	if err != nil {
		return Issued{}, err
	}

	deleted, err := s.store.DeleteByTokenHash(ctx, hash)
	if err != nil {
		return Issued{}, err
	}
	if !deleted {
		return Issued{}, ErrNotFound
	}

	claims, err := s.tokens.VerifyRefresh(refreshPlain, now)
	if err != nil {
		// Record is already consumed; a forged or expired token never rotates.
		return Issued{}, ErrInvalidToken
	}
	if claims.UserID != rec.UserID {
		return Issued{}, ErrInvalidToken
	}
	if !rec.ExpiresAt.After(now) {
		return Issued{}, ErrInvalidToken
	}

	return s.issuePair(ctx, now, rec.UserID)
}

// Logout consumes a refresh token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, refreshPlain string) error {
	refreshPlain = strings.TrimSpace(refreshPlain)
	if refreshPlain == "" {
		return nil
	}

	_, err := s.store.DeleteByTokenHash(ctx, token.HashRefreshTokenHex(refreshPlain))
	return err
}

// RequireAccess verifies an access token and loads its principal.
//
// Failure modes:
//   - ErrMissingToken: no token presented.
//   - ErrInvalidToken: signature/claims failed.
//   - ErrNotFound: token valid but the user no longer exists.
func (s *Service) RequireAccess(ctx context.Context, now time.Time, accessToken string) (identity.User, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return identity.User{}, ErrMissingToken
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	claims, err := s.tokens.VerifyAccess(accessToken, now)
	if err != nil {
		return identity.User{}, ErrInvalidToken
	}

	u, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.User{}, ErrNotFound
		}
		return identity.User{}, err
	}
	return u, nil
}

// ChangePassword re-verifies the current password, stores a new hash, and
// drops every refresh record for the user.
func (s *Service) ChangePassword(ctx context.Context, now time.Time, userID, currentPassword, newPassword string) error {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	auth, err := s.users.GetUserAuthByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	ok, err := s.pw.Verify(auth.PasswordHash, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPasswordMismatch
	}

	newHash, err := s.pw.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, newHash, now); err != nil {
		return err
	}

	// Old refresh tokens die with the old password.
	return s.store.DeleteAllForUser(ctx, userID)
}

// ResetPassword consumes a reset token (access plane, short TTL), stores a
// new hash, and drops every refresh record for the user.
func (s *Service) ResetPassword(ctx context.Context, now time.Time, resetToken, newPassword string) error {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	u, err := s.RequireAccess(ctx, now, resetToken)
	if err != nil {
		return err
	}

	newHash, err := s.pw.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, newHash, now); err != nil {
		return err
	}
	return s.store.DeleteAllForUser(ctx, u.ID)
}

// IssueResetToken mints a short-lived access-plane token for a password
// reset link.
func (s *Service) IssueResetToken(userID string, now time.Time) (string, time.Time, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return s.tokens.IssueAccessFor(userID, now, s.cfg.ResetTTL)
}

// DeleteAccount re-verifies the password, then removes the user and all of
// its refresh records.
func (s *Service) DeleteAccount(ctx context.Context, userID, plainPassword string) error {
	auth, err := s.users.GetUserAuthByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	ok, err := s.pw.Verify(auth.PasswordHash, plainPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPasswordMismatch
	}

	if err := s.store.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}
	return s.users.DeleteUser(ctx, userID)
}
