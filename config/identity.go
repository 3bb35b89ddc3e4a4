package config

import (
	"fmt"
	"strings"
	"time"
)

// IdentityMode selects the token backend behind the identity client.
type IdentityMode string

const (
	// IdentityModeOAuth talks to an OAuth2/OIDC authorization server.
	IdentityModeOAuth IdentityMode = "oauth"
	// IdentityModeMock uses the in-memory dev backend (for development only).
	IdentityModeMock IdentityMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for IdentityMode.
func (m *IdentityMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oauth", "mock":
		*m = IdentityMode(v)
		return nil
	default:
		return fmt.Errorf("invalid IdentityMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains authorization server configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"      envDefault:"bellsbank"`
	ClientSecret string `env:"CLIENT_SECRET"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	RegisterURL  string `env:"REGISTER_URL"`
	Scope        string `env:"SCOPE"          envDefault:"profile email offline_access"`
	// MetadataQuery is a JMESPath expression selecting user metadata.
	MetadataQuery string `env:"METADATA_QUERY" envDefault:"user_metadata"`
}

// DevAuthConfig controls the in-memory dev backend.
// Used when IDENTITY_MODE=mock for development and testing.
type DevAuthConfig struct {
	SigningKey          string        `env:"SIGNING_KEY"          envDefault:"bellsbank-dev-signing-key"`
	Email               string        `env:"EMAIL"                envDefault:"dev@example.com"`
	Password            string        `env:"PASSWORD"             envDefault:"devpassword"`
	FullName            string        `env:"FULL_NAME"            envDefault:"Dev User"`
	AccessTTL           time.Duration `env:"ACCESS_TTL"           envDefault:"1h"`
	RequireConfirmation bool          `env:"REQUIRE_CONFIRMATION" envDefault:"false"`
}

// IdentityConfig groups all identity-related configuration.
type IdentityConfig struct {
	// Mode determines which token backend to use.
	Mode IdentityMode `env:"IDENTITY_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"IDENTITY_OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"IDENTITY_DEV_"`

	// RedirectURL is sent with sign-ups as the post-confirmation target.
	// Defaults to APP_BASE_URL + "/".
	RedirectURL string `env:"IDENTITY_REDIRECT_URL"`

	// StorageKey names the persisted session bundle.
	StorageKey string `env:"IDENTITY_STORAGE_KEY" envDefault:"bellsbank.auth.token"`

	// RequestTimeout bounds each sign-in, sign-up and sign-out call.
	RequestTimeout time.Duration `env:"IDENTITY_REQUEST_TIMEOUT" envDefault:"30s"`
}

// Sanitize fills derived defaults.
func (c *IdentityConfig) Sanitize(baseURL string) {
	c.OAuth.DiscoveryURL = strings.TrimSpace(c.OAuth.DiscoveryURL)
	c.OAuth.RegisterURL = strings.TrimSpace(c.OAuth.RegisterURL)
	c.RedirectURL = strings.TrimSpace(c.RedirectURL)
	if c.RedirectURL == "" && baseURL != "" {
		c.RedirectURL = strings.TrimSuffix(baseURL, "/") + "/"
	}
	if c.StorageKey == "" {
		c.StorageKey = "bellsbank.auth.token"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.DevAuth.AccessTTL <= 0 {
		c.DevAuth.AccessTTL = time.Hour
	}
}
