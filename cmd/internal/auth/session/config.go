package session

import (
	"os"
	"strings"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// Access and refresh tokens are signed JWTs with two distinct symmetric
// secrets. The secrets must never be interchangeable: a refresh token must
// not pass access verification and vice versa.
type Config struct {
	// Issuer is the value set in the "iss" claim of both token kinds.
	Issuer string

	// AccessSecret signs short-lived access tokens (HS256).
	AccessSecret string

	// RefreshSecret signs refresh tokens (HS256). Must differ from AccessSecret.
	RefreshSecret string

	// AccessTTL is the access-token lifetime.
	AccessTTL time.Duration

	// RefreshTTL is the refresh-token lifetime and the session record TTL.
	RefreshTTL time.Duration

	// ResetTTL is the lifetime of password-reset tokens (signed with the
	// access secret).
	ResetTTL time.Duration

	// ClockSkew is the allowed time skew during token validation.
	ClockSkew time.Duration
}

const minSecretBytes = 32

// DefaultConfig returns defaults suitable for development.
// Secrets are intentionally empty; LoadConfigFromEnv requires them.
func DefaultConfig() Config {
	return Config{
		Issuer:     "loft",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		ResetTTL:   10 * time.Minute,
		ClockSkew:  30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - LOFT_AUTH_ACCESS_SECRET  (>= 32 bytes)
//   - LOFT_AUTH_REFRESH_SECRET (>= 32 bytes, different from access secret)
//
// Optional (durations must be valid Go duration strings):
//   - LOFT_AUTH_ISSUER
//   - LOFT_AUTH_ACCESS_TTL
//   - LOFT_AUTH_REFRESH_TTL
//   - LOFT_AUTH_RESET_TTL
//   - LOFT_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("LOFT_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("LOFT_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("LOFT_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("LOFT_AUTH_RESET_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.ResetTTL = d
	}

	if v := os.Getenv("LOFT_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.AccessSecret = strings.TrimSpace(os.Getenv("LOFT_AUTH_ACCESS_SECRET"))
	cfg.RefreshSecret = strings.TrimSpace(os.Getenv("LOFT_AUTH_REFRESH_SECRET"))

	if err := cfg.validateSecrets(); err != nil {
		return Config{}, err
	}

	// A refresh must outlive the access tokens it mints.
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

func (c Config) validateSecrets() error {
	if len(c.AccessSecret) < minSecretBytes || len(c.RefreshSecret) < minSecretBytes {
		return ErrConfig
	}
	if c.AccessSecret == c.RefreshSecret {
		return ErrConfig
	}
	return nil
}
