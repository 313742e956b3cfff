package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("LOFT_AUTH_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("LOFT_AUTH_REFRESH_SECRET", strings.Repeat("r", 32))
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	validSecrets(t)

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Issuer != "loft" {
		t.Errorf("issuer = %q", cfg.Issuer)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Errorf("access ttl = %s", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 7*24*time.Hour {
		t.Errorf("refresh ttl = %s", cfg.RefreshTTL)
	}
}

func TestLoadConfigFromEnv_MissingSecrets(t *testing.T) {
	t.Setenv("LOFT_AUTH_ACCESS_SECRET", "")
	t.Setenv("LOFT_AUTH_REFRESH_SECRET", "")

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_ShortSecret(t *testing.T) {
	t.Setenv("LOFT_AUTH_ACCESS_SECRET", "short")
	t.Setenv("LOFT_AUTH_REFRESH_SECRET", strings.Repeat("r", 32))

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_IdenticalSecretsRejected(t *testing.T) {
	same := strings.Repeat("s", 32)
	t.Setenv("LOFT_AUTH_ACCESS_SECRET", same)
	t.Setenv("LOFT_AUTH_REFRESH_SECRET", same)

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	validSecrets(t)
	t.Setenv("LOFT_AUTH_ISSUER", "loft-staging")
	t.Setenv("LOFT_AUTH_ACCESS_TTL", "5m")
	t.Setenv("LOFT_AUTH_REFRESH_TTL", "48h")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Issuer != "loft-staging" || cfg.AccessTTL != 5*time.Minute || cfg.RefreshTTL != 48*time.Hour {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_RefreshMustOutliveAccess(t *testing.T) {
	validSecrets(t)
	t.Setenv("LOFT_AUTH_ACCESS_TTL", "1h")
	t.Setenv("LOFT_AUTH_REFRESH_TTL", "30m")

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_BadDuration(t *testing.T) {
	validSecrets(t)
	t.Setenv("LOFT_AUTH_ACCESS_TTL", "soon")

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
}
