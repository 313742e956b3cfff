package authapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and cookie transport defaults.
type Config struct {
	// RefreshCookieName is the cookie carrying the refresh token.
	RefreshCookieName string

	CookiePath   string
	CookieDomain string

	// CookieSecure marks the refresh cookie Secure. Keep true outside
	// local development.
	CookieSecure bool

	MaxBodyBytes int64

	// ResetURLBase is the public base URL embedded in password-reset emails,
	// e.g. "https://app.example.com/reset". Empty disables the link and the
	// email carries only the token.
	ResetURLBase string
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
//
// Env surface:
//   - LOFT_AUTH_COOKIE_NAME
//   - LOFT_AUTH_COOKIE_PATH
//   - LOFT_AUTH_COOKIE_DOMAIN
//   - LOFT_AUTH_COOKIE_SECURE
//   - LOFT_AUTH_MAX_BODY_BYTES
//   - LOFT_AUTH_RESET_URL_BASE
func LoadConfigFromEnv() Config {
	cfg := Config{
		RefreshCookieName: envString("LOFT_AUTH_COOKIE_NAME", "refreshToken"),
		CookiePath:        envString("LOFT_AUTH_COOKIE_PATH", "/"),
		CookieDomain:      envString("LOFT_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:      envBool("LOFT_AUTH_COOKIE_SECURE", true),
		MaxBodyBytes:      envInt64("LOFT_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		ResetURLBase:      envString("LOFT_AUTH_RESET_URL_BASE", ""),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
