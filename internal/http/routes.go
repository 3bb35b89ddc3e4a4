// Package httpx serves the read-only status surface of a running session engine.
package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bellsbank/bellsbank/internal/data"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
)

// SessionReader exposes the session store's consistent view.
type SessionReader interface {
	Snapshot() domainauth.Snapshot
}

// ManualRefresher triggers an out-of-band token renewal.
type ManualRefresher interface {
	SafeRefresh(ctx context.Context) bool
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Session   SessionReader     // Required
	Refresher ManualRefresher   // Optional: enables POST /session/refresh
	Metrics   http.Handler      // Optional: served on GET /metrics
	Clock     data.TimeProvider // Optional: defaults to the system clock
	Logger    *slog.Logger      // Optional: request and panic logging
}

// NewRouter creates and configures the status router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := services.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Recover(logger))
	r.Use(Logging(logger))

	sessionHandlers := &SessionHandlers{Store: services.Session, Refresher: services.Refresher, Clock: clock}

	r.Get("/healthz", sessionHandlers.Health)
	r.Head("/healthz", sessionHandlers.Health)
	r.Get("/readyz", sessionHandlers.Ready)
	r.Route("/session", func(r chi.Router) {
		r.Get("/", sessionHandlers.Get)
		if services.Refresher != nil {
			r.Post("/refresh", sessionHandlers.Refresh)
		}
	})
	if services.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", services.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	})
	return r
}
