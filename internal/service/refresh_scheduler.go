package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/bellsbank/bellsbank/internal/data"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/observability/metrics"
	"github.com/bellsbank/bellsbank/internal/observability/statsd"
	"github.com/bellsbank/bellsbank/internal/ports"
)

// Refresh triggers, used for logging and metric tags.
const (
	TriggerTimer      = "timer"
	TriggerVisibility = "visibility"
	TriggerManual     = "manual"
)

const (
	defaultRefreshInterval     = 50 * time.Minute
	defaultRefreshMargin       = 10 * time.Minute
	defaultRefreshMinInterval  = 30 * time.Second
	defaultVisibilityMinGap    = 5 * time.Second
	defaultMaxRefreshFailures  = 5
	refreshExhaustedSignOutTTL = 15 * time.Second
)

// RefreshSchedulerOptions groups dependencies and timings for RefreshScheduler.
type RefreshSchedulerOptions struct {
	Provider   ports.SessionRefresher // Required: identity provider
	Visibility ports.VisibilitySource // Optional: foreground trigger source

	Interval               time.Duration // Optional: longest wait between refreshes (default 50m)
	Margin                 time.Duration // Optional: refresh this long before expiry (default 10m)
	MinInterval            time.Duration // Optional: shortest wait between timer refreshes (default 30s)
	VisibilityMinGap       time.Duration // Optional: minimum spacing of visibility refreshes (default 5s)
	MaxConsecutiveFailures int           // Optional: failures before giving up on an expiring session (default 5)

	Clock   data.TimeProvider // Optional: defaults to the system clock
	Logger  *slog.Logger      // Optional: structured logger
	Metrics statsd.Sink       // Optional: metrics sink (StatsD-compatible)
}

// RefreshScheduler renews the session periodically and when the application
// returns to the foreground. At most one refresh is in flight; triggers that
// arrive meanwhile are dropped.
type RefreshScheduler struct {
	provider   ports.SessionRefresher
	visibility ports.VisibilitySource
	clock      data.TimeProvider
	logger     *slog.Logger
	metrics    statsd.Sink
	limiter    *rate.Limiter

	interval    time.Duration
	margin      time.Duration
	minInterval time.Duration
	maxFailures int

	inFlight atomic.Bool
	failures atomic.Int32

	// rescheduled wakes the loop so the timer is recomputed for the held session.
	rescheduled chan struct{}

	// handoff serializes Start and Stop so auto-refresh ownership moves once each way.
	handoff sync.Mutex

	mu          sync.Mutex
	running     bool
	stopped     bool
	cancel      context.CancelFunc
	release     func()
	current     func() *domainauth.Session
	onExhausted func(context.Context)

	loopWG     sync.WaitGroup
	triggersWG sync.WaitGroup
}

// NewRefreshScheduler constructs a new RefreshScheduler.
func NewRefreshScheduler(opts RefreshSchedulerOptions) (*RefreshScheduler, error) {
	if opts.Provider == nil {
		return nil, errors.New("SessionRefresher is required")
	}

	gap := durationOr(opts.VisibilityMinGap, defaultVisibilityMinGap)
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	maxFailures := opts.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxRefreshFailures
	}

	s := &RefreshScheduler{
		provider:    opts.Provider,
		visibility:  opts.Visibility,
		clock:       clock,
		logger:      componentLogger(opts.Logger, "refresh_scheduler"),
		metrics:     opts.Metrics,
		limiter:     rate.NewLimiter(rate.Every(gap), 1),
		interval:    durationOr(opts.Interval, defaultRefreshInterval),
		margin:      durationOr(opts.Margin, defaultRefreshMargin),
		minInterval: durationOr(opts.MinInterval, defaultRefreshMinInterval),
		maxFailures: maxFailures,
		rescheduled: make(chan struct{}, 1),
	}

	s.logger.Debug("RefreshScheduler initialized",
		"interval", s.interval,
		"margin", s.margin,
		"min_interval", s.minInterval,
		"visibility_min_gap", gap,
		"max_consecutive_failures", s.maxFailures,
	)
	return s, nil
}

// bind connects the scheduler to the session holder: current reports the held
// session and onExhausted runs when renewal has failed for an expiring session.
func (s *RefreshScheduler) bind(current func() *domainauth.Session, onExhausted func(context.Context)) {
	s.mu.Lock()
	s.current = current
	s.onExhausted = onExhausted
	s.mu.Unlock()
}

// Start disables the provider's own refresh timer and begins scheduling.
// It is a no-op when already running or after Stop.
func (s *RefreshScheduler) Start(ctx context.Context) {
	s.handoff.Lock()
	defer s.handoff.Unlock()

	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)

	var visible <-chan domainauth.Visibility
	if s.visibility != nil {
		visible, s.release = s.visibility.Watch()
	}
	s.mu.Unlock()

	s.provider.StopAutoRefresh()

	s.logger.InfoContext(ctx, "starting refresh scheduler")
	s.loopWG.Add(1)
	go s.loop(ctx, visible)
}

// Stop ends scheduling, releases the visibility watch, waits for in-flight
// refreshes and hands renewal back to the provider. Stop is idempotent.
// A Stop racing a Start waits for it and then undoes it.
func (s *RefreshScheduler) Stop() {
	s.handoff.Lock()
	defer s.handoff.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	running := s.running
	cancel, release := s.cancel, s.release
	s.mu.Unlock()

	if !running {
		return
	}

	cancel()
	if release != nil {
		release()
	}
	s.loopWG.Wait()
	s.triggersWG.Wait()

	s.provider.StartAutoRefresh()
	s.logger.Info("refresh scheduler stopped")
}

// Reschedule recomputes the renewal timer against the held session. It never
// blocks; a pending request already covers this one.
func (s *RefreshScheduler) Reschedule() {
	select {
	case s.rescheduled <- struct{}{}:
	default:
	}
}

// SafeRefresh renews the session unless a renewal is already in flight.
// It reports whether a refresh was attempted. Refresh errors are logged, not returned.
func (s *RefreshScheduler) SafeRefresh(ctx context.Context) bool {
	return s.refresh(ctx, TriggerManual)
}

func (s *RefreshScheduler) loop(ctx context.Context, visible <-chan domainauth.Visibility) {
	defer s.loopWG.Done()

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-timer.C:
			s.fire(ctx, TriggerTimer)
			timer.Reset(s.nextDelay())

		case <-s.rescheduled:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.nextDelay())

		case v, ok := <-visible:
			if !ok {
				visible = nil
				continue
			}
			if v != domainauth.VisibilityVisible {
				continue
			}
			if !s.limiter.Allow() {
				s.logger.DebugContext(ctx, "visibility refresh rate limited")
				continue
			}
			s.fire(ctx, TriggerVisibility)
		}
	}
}

// fire runs a refresh without blocking the loop.
func (s *RefreshScheduler) fire(ctx context.Context, trigger string) {
	if !s.hasSession() {
		s.logger.DebugContext(ctx, "no session to refresh", "trigger", trigger)
		return
	}
	s.triggersWG.Add(1)
	go func() {
		defer s.triggersWG.Done()
		s.refresh(ctx, trigger)
	}()
}

func (s *RefreshScheduler) refresh(ctx context.Context, trigger string) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.DebugContext(ctx, "refresh already in flight, dropping", "trigger", trigger)
		metrics.EmitRefresh(s.metrics, metrics.RefreshMetric{Trigger: trigger, Result: metrics.ResultDropped})
		return false
	}
	defer s.inFlight.Store(false)

	start := time.Now()
	_, err := s.provider.RefreshSession(ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.onFailure(ctx, trigger, err, elapsed)
	} else {
		s.failures.Store(0)
		s.logger.DebugContext(ctx, "session refreshed", "trigger", trigger, "duration", elapsed)
		metrics.EmitRefresh(s.metrics, metrics.RefreshMetric{
			Trigger:  trigger,
			Result:   metrics.ResultSuccess,
			Duration: elapsed,
		})
	}

	s.Reschedule()
	return true
}

func (s *RefreshScheduler) onFailure(ctx context.Context, trigger string, err error, elapsed time.Duration) {
	metrics.EmitRefresh(s.metrics, metrics.RefreshMetric{
		Trigger:  trigger,
		Result:   metrics.ResultError,
		Duration: elapsed,
		Err:      err,
	})

	if ctx.Err() != nil || apperrors.IsNoSession(err) {
		s.logger.DebugContext(ctx, "refresh abandoned", "trigger", trigger, "error", err)
		return
	}

	failures := int(s.failures.Add(1))
	s.logger.WarnContext(ctx, "session refresh failed",
		"trigger", trigger,
		"consecutive_failures", failures,
		"error", err,
	)
	if failures < s.maxFailures {
		return
	}

	s.mu.Lock()
	current, onExhausted := s.current, s.onExhausted
	s.mu.Unlock()

	if current == nil || onExhausted == nil {
		return
	}
	if !current().ExpiresWithin(s.margin, s.clock.Now()) {
		return
	}

	s.failures.Store(0)
	s.logger.WarnContext(ctx, "session renewal exhausted, signing out locally", "consecutive_failures", failures)

	signOutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshExhaustedSignOutTTL)
	defer cancel()
	onExhausted(signOutCtx)
}

// nextDelay returns the wait before the next timer refresh: the configured
// interval, shortened so renewal happens Margin before expiry, never below MinInterval.
func (s *RefreshScheduler) nextDelay() time.Duration {
	d := s.interval

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current != nil {
		if sess := current(); sess != nil && !sess.ExpiresAt.IsZero() {
			if untilRenew := sess.ExpiresAt.Sub(s.clock.Now()) - s.margin; untilRenew < d {
				d = untilRenew
			}
		}
	}

	if d < s.minInterval {
		d = s.minInterval
	}
	return d
}

// hasSession reports whether a bound holder currently has a session.
// An unbound scheduler always attempts renewal.
func (s *RefreshScheduler) hasSession() bool {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	return current == nil || current() != nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
