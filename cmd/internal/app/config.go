package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, LOFT_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and refresh-token
	// hashing must be HMAC-based.
	RequireTokenHMAC bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool

	// How often expired refresh records are swept from the session store.
	SessionSweepInterval time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("LOFT_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("LOFT_LOG_LEVEL", "info"),
		LogFormat: EnvString("LOFT_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("LOFT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("LOFT_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("LOFT_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("LOFT_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("LOFT_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:    EnvString("LOFT_DATABASE_URL", ""),
		DBMaxConns:     EnvInt32("LOFT_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("LOFT_DB_MIN_CONNS", 0),
		MigrateOnStart: EnvBool("LOFT_DB_MIGRATE", true),

		ReadinessRequireDB: EnvBool("LOFT_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("LOFT_REQUIRE_TOKEN_HMAC", false),

		CORSAllowedOrigins:   EnvStringList("LOFT_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("LOFT_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("LOFT_CORS_MAX_AGE_SECONDS", 600),

		MetricsEnabled: EnvBool("LOFT_METRICS_ENABLED", true),

		SessionSweepInterval: EnvDuration("LOFT_SESSION_SWEEP_INTERVAL", 10*time.Minute),
	}
}
