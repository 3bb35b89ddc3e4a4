package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Identity.Mode != IdentityModeOAuth {
		t.Fatalf("expected oauth mode by default, got %q", cfg.Identity.Mode)
	}
	if cfg.Session.Persistence != PersistenceRedis {
		t.Fatalf("expected redis persistence by default, got %q", cfg.Session.Persistence)
	}
	if cfg.Identity.RedirectURL != "http://localhost:8080/" {
		t.Fatalf("expected redirect derived from base URL, got %q", cfg.Identity.RedirectURL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("expected INFO log level, got %v", cfg.LogLevel)
	}

	expected := RefreshConfig{
		Interval:         50 * time.Minute,
		Margin:           10 * time.Minute,
		MinInterval:      30 * time.Second,
		MaxFailures:      5,
		VisibilityMinGap: 5 * time.Second,
		ProfileTimeout:   10 * time.Second,
	}
	if cfg.Refresh != expected {
		t.Fatalf("unexpected refresh defaults:\nexpected: %#v\ngot:      %#v", expected, cfg.Refresh)
	}
	if !cfg.NeedsDatabase() || !cfg.NeedsRedis() {
		t.Fatalf("oauth mode with redis persistence needs both stores")
	}
}

func TestAppConfig_ParseIdentityEnv(t *testing.T) {
	t.Setenv("IDENTITY_MODE", "OAUTH")
	t.Setenv("IDENTITY_OAUTH_CLIENT_ID", "bank-web")
	t.Setenv("IDENTITY_OAUTH_CLIENT_SECRET", "super-secret")
	t.Setenv("IDENTITY_OAUTH_DISCOVERY_URL", " https://auth.example.com/.well-known/openid-configuration ")
	t.Setenv("IDENTITY_OAUTH_REGISTER_URL", "https://auth.example.com/signup")
	t.Setenv("IDENTITY_OAUTH_SCOPE", "profile email")
	t.Setenv("IDENTITY_OAUTH_METADATA_QUERY", "user.user_metadata")
	t.Setenv("IDENTITY_REDIRECT_URL", "https://bank.example/welcome")
	t.Setenv("LOG_LEVEL", "debug")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := OAuthConfig{
		ClientID:      "bank-web",
		ClientSecret:  "super-secret",
		DiscoveryURL:  "https://auth.example.com/.well-known/openid-configuration",
		RegisterURL:   "https://auth.example.com/signup",
		Scope:         "profile email",
		MetadataQuery: "user.user_metadata",
	}
	if !reflect.DeepEqual(cfg.Identity.OAuth, expected) {
		t.Fatalf("unexpected oauth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Identity.OAuth)
	}
	if cfg.Identity.RedirectURL != "https://bank.example/welcome" {
		t.Fatalf("explicit redirect overridden: %q", cfg.Identity.RedirectURL)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("expected DEBUG log level, got %v", cfg.LogLevel)
	}
}

func TestAppConfig_InvalidModes(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{name: "identity mode", key: "IDENTITY_MODE", value: "saml"},
		{name: "persistence mode", key: "SESSION_PERSISTENCE", value: "disk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			var cfg AppConfig
			if err := env.Parse(&cfg); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestAppConfig_MockModeStores(t *testing.T) {
	t.Setenv("IDENTITY_MODE", "mock")
	t.Setenv("SESSION_PERSISTENCE", "memory")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.NeedsDatabase() || cfg.NeedsRedis() {
		t.Fatalf("mock mode with memory persistence needs no external store")
	}

	cfg.Postgres.Enabled = true
	if !cfg.NeedsDatabase() {
		t.Fatalf("DB_ENABLED forces a database in mock mode")
	}
}

func TestRefreshConfig_Sanitize(t *testing.T) {
	cfg := RefreshConfig{
		Interval:         time.Minute,
		Margin:           -time.Second,
		MinInterval:      5 * time.Minute,
		MaxFailures:      0,
		VisibilityMinGap: -time.Second,
	}
	cfg.Sanitize()

	if cfg.MinInterval != time.Minute {
		t.Fatalf("expected min interval clamped to interval, got %v", cfg.MinInterval)
	}
	if cfg.Margin != 0 || cfg.VisibilityMinGap != 0 {
		t.Fatalf("expected negative durations clamped to zero, got margin=%v gap=%v", cfg.Margin, cfg.VisibilityMinGap)
	}
	if cfg.MaxFailures != 1 {
		t.Fatalf("expected at least one attempt, got %d", cfg.MaxFailures)
	}
	if cfg.ProfileTimeout != 10*time.Second {
		t.Fatalf("expected default profile timeout, got %v", cfg.ProfileTimeout)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}
