package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/bellsbank/bellsbank/config"
)

// InitLogger initializes the structured logger. Logs go to w (stderr when nil)
// so command output on stdout stays machine-readable.
func InitLogger(level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateConfig checks the combinations Sanitize cannot repair.
func ValidateConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	var errs []error
	if cfg.Identity.Mode == config.IdentityModeOAuth {
		oauth := cfg.Identity.OAuth
		if oauth.DiscoveryURL == "" {
			errs = append(errs, errors.New("IDENTITY_OAUTH_DISCOVERY_URL is required in oauth mode"))
		}
		if oauth.ClientID == "" {
			errs = append(errs, errors.New("IDENTITY_OAUTH_CLIENT_ID is required in oauth mode"))
		}
	}
	if cfg.Identity.Mode == config.IdentityModeMock && !cfg.IsDev {
		slog.Default().Warn("mock identity mode enabled outside development")
	}
	return errors.Join(errs...)
}
