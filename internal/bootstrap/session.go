package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/bellsbank/bellsbank/config"
	"github.com/bellsbank/bellsbank/internal/adapters/identity"
	"github.com/bellsbank/bellsbank/internal/adapters/memory"
	"github.com/bellsbank/bellsbank/internal/data"
	"github.com/bellsbank/bellsbank/internal/observability/statsd"
	"github.com/bellsbank/bellsbank/internal/ports"
	"github.com/bellsbank/bellsbank/internal/service"
)

// SessionDeps groups dependencies for the session engine.
type SessionDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB               // Required in oauth mode
	RedisClient redis.UniversalClient // Required for redis persistence
	Visibility  ports.VisibilitySource
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

// SessionContainer holds the wired session engine.
type SessionContainer struct {
	Client    *identity.Client
	Profiles  ProfileStore
	Loader    *service.ProfileLoader
	Scheduler *service.RefreshScheduler
	Store     *service.SessionStore
}

// BuildSession wires the identity client, profile loader, refresh scheduler and
// session store. The store is returned uninitialized.
func BuildSession(ctx context.Context, deps SessionDeps) (*SessionContainer, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := deps.Config

	profiles, err := buildProfileStore(cfg, deps.DB)
	if err != nil {
		return nil, err
	}

	client, err := BuildIdentityClient(ctx, IdentityDeps{
		Identity:    cfg.Identity,
		Session:     cfg.Session,
		RedisClient: deps.RedisClient,
		Profiles:    profiles,
		Logger:      deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build identity client: %w", err)
	}

	loader, err := service.NewProfileLoader(service.ProfileLoaderOptions{
		Repo:    profiles,
		Timeout: cfg.Refresh.ProfileTimeout,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("build profile loader: %w", err)
	}

	scheduler, err := service.NewRefreshScheduler(service.RefreshSchedulerOptions{
		Provider:               client,
		Visibility:             deps.Visibility,
		Interval:               cfg.Refresh.Interval,
		Margin:                 cfg.Refresh.Margin,
		MinInterval:            cfg.Refresh.MinInterval,
		VisibilityMinGap:       cfg.Refresh.VisibilityMinGap,
		MaxConsecutiveFailures: cfg.Refresh.MaxFailures,
		Logger:                 deps.Logger,
		Metrics:                deps.Metrics,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("build refresh scheduler: %w", err)
	}

	store, err := service.NewSessionStore(service.SessionStoreOptions{
		Provider:   client,
		Profiles:   loader,
		Refresh:    scheduler,
		RedirectTo: cfg.Identity.RedirectURL,
		Timeout:    cfg.Identity.RequestTimeout,
		Logger:     deps.Logger,
		Metrics:    deps.Metrics,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("build session store: %w", err)
	}

	return &SessionContainer{
		Client:    client,
		Profiles:  profiles,
		Loader:    loader,
		Scheduler: scheduler,
		Store:     store,
	}, nil
}

// Close stops the store (and with it the scheduler) and then the client.
func (c *SessionContainer) Close() {
	if c == nil {
		return
	}
	c.Store.Close()
	c.Client.Close()
}

//nolint:ireturn // repository is chosen at runtime.
func buildProfileStore(cfg *config.AppConfig, db *sql.DB) (ProfileStore, error) {
	if db != nil {
		return data.NewProfileRepo(db), nil
	}
	if cfg.Identity.Mode == config.IdentityModeOAuth {
		return nil, errors.New("oauth identity mode requires a profile database")
	}
	return memory.NewProfileRepo(nil), nil
}
