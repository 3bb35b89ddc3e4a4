package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/bellsbank/bellsbank/config"
	"github.com/bellsbank/bellsbank/internal/ports"
)

// Runtime owns every long-lived resource of a running session engine.
type Runtime struct {
	Config        *config.AppConfig
	Logger        *slog.Logger
	DB            *sql.DB
	Redis         redis.UniversalClient
	Observability *ObservabilityContainer
	Session       *SessionContainer
}

// RuntimeOptions groups parameters for Open.
type RuntimeOptions struct {
	Config     *config.AppConfig
	Logger     *slog.Logger
	Visibility ports.VisibilitySource // Optional
}

// Open connects the stores the configuration needs and wires the session engine.
// On error every resource opened so far is released.
func Open(ctx context.Context, opts RuntimeOptions) (_ *Runtime, err error) {
	if err = ValidateConfig(opts.Config); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Runtime{Config: opts.Config, Logger: logger}
	defer func() {
		if err != nil {
			err = errors.Join(err, rt.Close())
		}
	}()

	cfg := opts.Config
	dbDeps := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	if cfg.NeedsDatabase() {
		if rt.DB, err = ConnectDB(ctx, dbDeps); err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrationsOnStart {
			if err = RunMigrations(ctx, rt.DB, logger); err != nil {
				return nil, err
			}
		}
	}

	if cfg.NeedsRedis() {
		if rt.Redis, err = ConnectRedis(ctx, dbDeps); err != nil {
			return nil, err
		}
	}

	if rt.Observability, err = BuildObservability(cfg.Observability.Metrics, logger); err != nil {
		return nil, err
	}

	rt.Session, err = BuildSession(ctx, SessionDeps{
		Config:      cfg,
		DB:          rt.DB,
		RedisClient: rt.Redis,
		Visibility:  opts.Visibility,
		Metrics:     rt.Observability.Sink,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error

	rt.Session.Close()
	if rt.Observability != nil {
		if err := rt.Observability.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close metrics: %w", err))
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
