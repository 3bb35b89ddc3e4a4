package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/bellsbank/bellsbank/config"
	httpx "github.com/bellsbank/bellsbank/internal/http"
)

// StatusServerConfig contains configuration for the status server.
type StatusServerConfig struct {
	HTTP      config.HTTPConfig
	Session   httpx.SessionReader
	Refresher httpx.ManualRefresher
	Metrics   http.Handler
	Logger    *slog.Logger
}

// NewStatusServer builds the status server without starting it.
func NewStatusServer(cfg StatusServerConfig) *http.Server {
	handler := httpx.NewRouter(httpx.RouterServices{
		Session:   cfg.Session,
		Refresher: cfg.Refresher,
		Metrics:   cfg.Metrics,
		Logger:    cfg.Logger,
	})
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
}

// ServeHTTP runs server until ctx is done, then shuts it down gracefully.
// It returns nil on a clean shutdown.
func ServeHTTP(ctx context.Context, server *http.Server, ln net.Listener, cfg config.HTTPConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting status server", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	logger.InfoContext(ctx, "shutting down status server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.InfoContext(ctx, "status server stopped")
	return nil
}
