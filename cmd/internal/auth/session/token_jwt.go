package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal identity envelope carried by both token kinds.
type Claims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

// TokenManager issues and verifies the two token kinds.
//
// The access and refresh planes are cryptographically separate: a token
// signed with one secret never verifies under the other.
type TokenManager interface {
	IssueAccess(userID string, now time.Time) (token string, exp time.Time, err error)
	// IssueAccessFor issues an access-plane token with an explicit TTL
	// (used for password-reset links).
	IssueAccessFor(userID string, now time.Time, ttl time.Duration) (token string, exp time.Time, err error)
	IssueRefresh(userID string, now time.Time) (token string, exp time.Time, err error)

	VerifyAccess(token string, now time.Time) (Claims, error)
	VerifyRefresh(token string, now time.Time) (Claims, error)
}

type jwtClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

type hs256Manager struct {
	issuer     string
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clockSkew  time.Duration
}

// NewHS256Manager builds a TokenManager signing HS256 JWTs with the two
// configured secrets.
func NewHS256Manager(cfg Config) (TokenManager, error) {
	if err := cfg.validateSecrets(); err != nil {
		return nil, err
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, ErrConfig
	}

	return &hs256Manager{
		issuer:     cfg.Issuer,
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		clockSkew:  cfg.ClockSkew,
	}, nil
}

func (m *hs256Manager) IssueAccess(userID string, now time.Time) (string, time.Time, error) {
	return m.issue(m.accessKey, userID, now, m.accessTTL)
}

func (m *hs256Manager) IssueAccessFor(userID string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, ErrConfig
	}
	return m.issue(m.accessKey, userID, now, ttl)
}

func (m *hs256Manager) IssueRefresh(userID string, now time.Time) (string, time.Time, error) {
	return m.issue(m.refreshKey, userID, now, m.refreshTTL)
}

func (m *hs256Manager) issue(key []byte, userID string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)

	claims := jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *hs256Manager) VerifyAccess(token string, now time.Time) (Claims, error) {
	return m.verify(m.accessKey, token, now)
}

func (m *hs256Manager) VerifyRefresh(token string, now time.Time) (Claims, error) {
	return m.verify(m.refreshKey, token, now)
}

func (m *hs256Manager) verify(key []byte, token string, now time.Time) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingToken
	}

	var claims jwtClaims
	parsed, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(t *jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		UserID: claims.UserID,
		Issuer: claims.Issuer,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
