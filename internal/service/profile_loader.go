package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	"github.com/bellsbank/bellsbank/internal/observability/metrics"
	"github.com/bellsbank/bellsbank/internal/observability/statsd"
	"github.com/bellsbank/bellsbank/internal/ports"
)

const defaultProfileTimeout = 10 * time.Second

// ProfileLoaderOptions groups dependencies for ProfileLoader.
type ProfileLoaderOptions struct {
	Repo    ports.ProfileRepository // Required: profile lookup
	Timeout time.Duration           // Optional: per-call timeout, defaults to 10s
	Logger  *slog.Logger            // Optional: structured logger
	Metrics statsd.Sink             // Optional: metrics sink (StatsD-compatible)
}

// ProfileLoader fetches the profile record for a user.
type ProfileLoader struct {
	repo    ports.ProfileRepository
	timeout time.Duration
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewProfileLoader constructs a new ProfileLoader.
func NewProfileLoader(opts ProfileLoaderOptions) (*ProfileLoader, error) {
	if opts.Repo == nil {
		return nil, errors.New("ProfileRepository is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultProfileTimeout
	}

	return &ProfileLoader{
		repo:    opts.Repo,
		timeout: timeout,
		logger:  componentLogger(opts.Logger, "profile_loader"),
		metrics: opts.Metrics,
	}, nil
}

// Load fetches the profile for userID.
//
// ok is false only when the fetch failed; callers then keep whatever profile
// they already hold. A missing record yields (nil, true).
func (l *ProfileLoader) Load(ctx context.Context, userID string) (*domainauth.Profile, bool) {
	if userID == "" {
		return nil, true
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	profile, err := l.repo.FindByUserID(ctx, userID)
	if err != nil {
		l.logger.ErrorContext(ctx, "error fetching profile", "user_id", userID, "error", err)
		metrics.EmitProfileLoad(l.metrics, metrics.ResultError, err)
		return nil, false
	}
	if profile == nil {
		l.logger.DebugContext(ctx, "no profile for user", "user_id", userID)
		metrics.EmitProfileLoad(l.metrics, metrics.ResultNotFound, nil)
		return nil, true
	}

	metrics.EmitProfileLoad(l.metrics, metrics.ResultSuccess, nil)
	return profile, true
}

// componentLogger derives a component logger, discarding output when base is nil.
func componentLogger(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		return slog.New(slog.DiscardHandler)
	}
	return base.With("component", component)
}
