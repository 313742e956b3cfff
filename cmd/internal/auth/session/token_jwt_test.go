package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testTokenConfig() Config {
	cfg := DefaultConfig()
	cfg.AccessSecret = strings.Repeat("a", 32)
	cfg.RefreshSecret = strings.Repeat("r", 32)
	return cfg
}

func mustManager(t *testing.T, cfg Config) TokenManager {
	t.Helper()
	m, err := NewHS256Manager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	m := mustManager(t, testTokenConfig())
	now := time.Now().UTC()

	tok, exp, err := m.IssueAccess("user-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.After(now) {
		t.Fatal("exp not in the future")
	}

	claims, err := m.VerifyAccess(tok, now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("uid = %q", claims.UserID)
	}
	if claims.Issuer != "loft" {
		t.Fatalf("iss = %q", claims.Issuer)
	}
}

func TestTokenPlanesNotInterchangeable(t *testing.T) {
	t.Parallel()

	m := mustManager(t, testTokenConfig())
	now := time.Now().UTC()

	access, _, err := m.IssueAccess("user-1", now)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, _, err := m.IssueRefresh("user-1", now)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	if _, err := m.VerifyRefresh(access, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token passed refresh verification: %v", err)
	}
	if _, err := m.VerifyAccess(refresh, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token passed access verification: %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig()
	cfg.ClockSkew = 0
	m := mustManager(t, cfg)

	now := time.Now().UTC()
	tok, exp, err := m.IssueAccess("user-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.VerifyAccess(tok, exp.Add(time.Second)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestTokenClockSkewTolerated(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig()
	cfg.ClockSkew = 30 * time.Second
	m := mustManager(t, cfg)

	now := time.Now().UTC()
	tok, exp, err := m.IssueAccess("user-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Just past expiry but inside the skew window.
	if _, err := m.VerifyAccess(tok, exp.Add(10*time.Second)); err != nil {
		t.Fatalf("token inside skew rejected: %v", err)
	}
}

func TestTokenWrongIssuerRejected(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig()
	issuerA := mustManager(t, cfg)

	cfg2 := cfg
	cfg2.Issuer = "someone-else"
	issuerB := mustManager(t, cfg2)

	now := time.Now().UTC()
	tok, _, err := issuerB.IssueAccess("user-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := issuerA.VerifyAccess(tok, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign issuer accepted: %v", err)
	}
}

func TestTokenTamperRejected(t *testing.T) {
	t.Parallel()

	m := mustManager(t, testTokenConfig())
	now := time.Now().UTC()

	tok, _, err := m.IssueAccess("user-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Flip a character in the signature segment.
	tampered := tok[:len(tok)-2] + "xx"
	if _, err := m.VerifyAccess(tampered, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token accepted: %v", err)
	}
}

func TestResetTokenTTL(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig()
	cfg.ClockSkew = 0
	m := mustManager(t, cfg)

	now := time.Now().UTC()
	tok, exp, err := m.IssueAccessFor("user-1", now, 10*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := exp.Sub(now); got != 10*time.Minute {
		t.Fatalf("ttl = %s", got)
	}

	if _, err := m.VerifyAccess(tok, now.Add(5*time.Minute)); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}
	if _, err := m.VerifyAccess(tok, now.Add(11*time.Minute)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired reset token accepted: %v", err)
	}
}
