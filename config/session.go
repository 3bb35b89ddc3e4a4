package config

import (
	"fmt"
	"strings"
	"time"
)

// PersistenceMode selects where the identity client keeps its session bundle.
type PersistenceMode string

const (
	// PersistenceRedis stores the bundle in Redis so it survives restarts.
	PersistenceRedis PersistenceMode = "redis"
	// PersistenceMemory keeps the bundle in process memory.
	PersistenceMemory PersistenceMode = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for PersistenceMode.
func (m *PersistenceMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "memory":
		*m = PersistenceMode(v)
		return nil
	default:
		return fmt.Errorf("invalid PersistenceMode: %q (valid options: redis, memory)", v)
	}
}

// SessionConfig controls session bundle persistence.
type SessionConfig struct {
	Persistence PersistenceMode `env:"SESSION_PERSISTENCE"  envDefault:"redis"`
	PersistTTL  time.Duration   `env:"SESSION_PERSIST_TTL"  envDefault:"720h"`
	RedisPrefix string          `env:"SESSION_REDIS_PREFIX" envDefault:"bellsbank:session:"`
}

// Sanitize applies guardrails to session persistence values.
func (c *SessionConfig) Sanitize() {
	if c.PersistTTL <= 0 {
		c.PersistTTL = 720 * time.Hour
	}
	if strings.TrimSpace(c.RedisPrefix) == "" {
		c.RedisPrefix = "bellsbank:session:"
	}
}

// RefreshConfig contains refresh scheduler and profile loader timing.
type RefreshConfig struct {
	Interval         time.Duration `env:"REFRESH_INTERVAL"           envDefault:"50m"`
	Margin           time.Duration `env:"REFRESH_MARGIN"             envDefault:"10m"`
	MinInterval      time.Duration `env:"REFRESH_MIN_INTERVAL"       envDefault:"30s"`
	MaxFailures      int           `env:"REFRESH_MAX_FAILURES"       envDefault:"5"`
	VisibilityMinGap time.Duration `env:"REFRESH_VISIBILITY_MIN_GAP" envDefault:"5s"`
	ProfileTimeout   time.Duration `env:"PROFILE_LOAD_TIMEOUT"       envDefault:"10s"`
}

// Sanitize applies guardrails to refresh timing values.
func (c *RefreshConfig) Sanitize() {
	if c.Interval <= 0 {
		c.Interval = 50 * time.Minute
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 30 * time.Second
	}
	// The floor never exceeds the interval itself.
	if c.MinInterval > c.Interval {
		c.MinInterval = c.Interval
	}
	if c.Margin < 0 {
		c.Margin = 0
	}
	if c.MaxFailures < 1 {
		c.MaxFailures = 1
	}
	if c.VisibilityMinGap < 0 {
		c.VisibilityMinGap = 0
	}
	if c.ProfileTimeout <= 0 {
		c.ProfileTimeout = 10 * time.Second
	}
}
