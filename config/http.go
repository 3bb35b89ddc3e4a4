package config

import "time"

// HTTPConfig contains status server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the status server to. Empty disables it.
	Addr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`

	// BaseURL is the public origin of the application (e.g., "https://bank.example").
	// Used to derive the sign-up redirect target.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 5 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}
