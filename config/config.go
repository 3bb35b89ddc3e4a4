package config

import (
	"log/slog"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - identity.go: Identity provider configuration
//   - session.go: Session persistence and refresh timing
//   - database.go: Database and Redis configuration
//   - http.go: Status server configuration
//   - observability.go: Metrics configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel accepts slog level names (DEBUG, INFO, WARN, ERROR).
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Identity provider configuration
	Identity IdentityConfig

	// Session persistence and refresh configuration
	Session SessionConfig
	Refresh RefreshConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP status server configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Identity.Sanitize(c.HTTP.BaseURL)
	c.Session.Sanitize()
	c.Refresh.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// NeedsDatabase reports whether any configured component uses PostgreSQL.
// The oauth identity mode keeps profiles in PostgreSQL; mock mode reads them
// from PostgreSQL only when DB_ENABLED is set.
func (c *AppConfig) NeedsDatabase() bool {
	return c.Identity.Mode == IdentityModeOAuth || c.Postgres.Enabled
}

// NeedsRedis reports whether session persistence uses Redis.
func (c *AppConfig) NeedsRedis() bool {
	return c.Session.Persistence == PersistenceRedis
}
