package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/observability/metrics"
	"github.com/bellsbank/bellsbank/internal/observability/statsd"
	"github.com/bellsbank/bellsbank/internal/ports"
)

// Foreground operation names, used for logging and metric tags.
const (
	OperationSignIn  = "sign_in"
	OperationSignUp  = "sign_up"
	OperationSignOut = "sign_out"
)

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	Provider   ports.IdentityProvider // Required: identity provider
	Profiles   *ProfileLoader         // Optional: profile fetches are skipped when nil
	Refresh    *RefreshScheduler      // Optional: started by Initialize, stopped by Close
	RedirectTo string                 // Optional: post-confirmation redirect passed on sign-up
	Timeout    time.Duration          // Optional: bounds each provider call (0 = caller's deadline only)
	Logger     *slog.Logger           // Optional: structured logger
	Metrics    statsd.Sink            // Optional: metrics sink (StatsD-compatible)
}

// SessionStore is the single source of truth for who is signed in.
//
// It mirrors the identity provider's session, owns the loading flag that
// gates sign-in redirects, and keeps the user's profile in step with the
// user. All reads go through Snapshot or Watch.
type SessionStore struct {
	provider   ports.IdentityProvider
	profiles   *ProfileLoader
	refresh    *RefreshScheduler
	redirectTo string
	timeout    time.Duration
	logger     *slog.Logger
	metrics    statsd.Sink

	// ctx bounds background work and is canceled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	tasks  *taskQueue

	initOnce  sync.Once
	closeOnce sync.Once

	mu       sync.Mutex
	session  *domainauth.Session
	user     *domainauth.User
	profile  *domainauth.Profile
	loading  bool
	closed   bool
	attached *attachedProvider

	// pending counts initialization and sign-out; authInFlight counts
	// sign-in and sign-up. loading may only drop when both are zero.
	pending      int
	authInFlight int
	// epoch advances on every adoption so stale async results can be discarded.
	epoch uint64

	watchers  map[int]chan domainauth.Snapshot
	nextWatch int
}

// NewSessionStore constructs a new SessionStore. The store starts loading and
// stays loading until Initialize settles.
func NewSessionStore(opts SessionStoreOptions) (*SessionStore, error) {
	if opts.Provider == nil {
		return nil, errors.New("IdentityProvider is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionStore{
		provider:   opts.Provider,
		profiles:   opts.Profiles,
		refresh:    opts.Refresh,
		redirectTo: opts.RedirectTo,
		timeout:    opts.Timeout,
		logger:     componentLogger(opts.Logger, "session_store"),
		metrics:    opts.Metrics,
		ctx:        ctx,
		cancel:     cancel,
		tasks:      newTaskQueue(),
		loading:    true,
		pending:    1,
		watchers:   make(map[int]chan domainauth.Snapshot),
	}

	if s.refresh != nil {
		s.refresh.bind(s.currentSession, s.expireSession)
	}
	return s, nil
}

// Initialize subscribes to provider changes, then adopts the provider's
// current session. Only the first call has any effect; it returns once the
// initial lookup has settled.
func (s *SessionStore) Initialize(ctx context.Context) {
	s.initOnce.Do(func() { s.initialize(ctx) })
}

func (s *SessionStore) initialize(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(s.ctx, cancel)
	defer stopWatch()

	a := attach(s.provider)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		a.detach()
		return
	}
	s.attached = a
	s.mu.Unlock()

	go s.consume(a.events())

	if s.refresh != nil {
		s.refresh.Start(s.ctx)
	}

	s.mu.Lock()
	startEpoch := s.epoch
	s.mu.Unlock()

	sess, err := a.lookup(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "initial session lookup failed, treating as signed out", "error", err)
		sess = nil
	}

	s.mu.Lock()
	var loadFor string
	switch {
	case s.closed:
		s.logger.DebugContext(ctx, "discarding initial session after close")
	case s.epoch != startEpoch:
		s.logger.DebugContext(ctx, "discarding initial session superseded by a newer change")
	default:
		loadFor = s.adoptLocked(sess)
	}
	s.pending--
	s.settleLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.scheduleProfileLoad(loadFor)
}

// SignIn authenticates with email and password and adopts the resulting session.
// Failures are returned as *errors.AppError and leave the current state unchanged.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := requireCredentials(email, password); err != nil {
		return err
	}

	return s.runAuth(ctx, OperationSignIn, func(ctx context.Context) (*domainauth.Session, error) {
		return s.provider.SignInWithPassword(ctx, email, password)
	})
}

// SignUp registers a new account with its profile metadata. When the provider
// requires confirmation no session is adopted and SignUp still succeeds.
func (s *SessionStore) SignUp(ctx context.Context, email, password string, meta domainauth.SignUpMetadata) error {
	email = strings.TrimSpace(email)
	if err := requireCredentials(email, password); err != nil {
		return err
	}

	in := ports.SignUpInput{
		Email:      email,
		Password:   password,
		Metadata:   meta,
		RedirectTo: s.redirectTo,
	}
	return s.runAuth(ctx, OperationSignUp, func(ctx context.Context) (*domainauth.Session, error) {
		return s.provider.SignUp(ctx, in)
	})
}

// SignOut ends the session with the provider and clears local state. Local
// state is cleared even when the provider call fails; that failure is returned.
func (s *SessionStore) SignOut(ctx context.Context) error {
	start := time.Now()
	s.begin(false)
	defer s.end(false)

	callCtx, cancel := s.callContext(ctx)
	err := s.provider.SignOut(callCtx)
	cancel()
	s.clearLocal()

	result := metrics.ResultSuccess
	if err != nil {
		err = toAuthError(err, "Sign out failed")
		result = metrics.ResultError
		s.logger.WarnContext(ctx, "provider sign-out failed, local session cleared", "error", err)
	} else {
		s.logger.InfoContext(ctx, "signed out")
	}
	metrics.EmitAuthOperation(s.metrics, metrics.AuthMetric{
		Operation: OperationSignOut,
		Result:    result,
		Duration:  time.Since(start),
		Err:       err,
	})
	return err
}

// Snapshot returns the current state.
func (s *SessionStore) Snapshot() domainauth.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Watch returns a channel that receives the current state and then every
// change. Delivery is latest-wins: a slow reader sees the newest snapshot,
// not every intermediate one. The returned func stops the watch and closes the channel.
func (s *SessionStore) Watch() (<-chan domainauth.Snapshot, func()) {
	ch := make(chan domainauth.Snapshot, 1)

	s.mu.Lock()
	if s.closed {
		ch <- s.snapshotLocked()
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// Close unsubscribes from the provider, stops the refresh scheduler and
// background work, and closes all watch channels. Results that arrive after
// Close are discarded. Close is idempotent and safe before Initialize.
func (s *SessionStore) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.epoch++
		attached := s.attached
		watchers := s.watchers
		s.watchers = map[int]chan domainauth.Snapshot{}
		s.mu.Unlock()

		s.cancel()
		if attached != nil {
			attached.detach()
		}
		if s.refresh != nil {
			s.refresh.Stop()
		}
		s.tasks.stop()

		for _, ch := range watchers {
			close(ch)
		}
		s.logger.Debug("session store closed")
	})
}

// consume applies provider events until the subscription ends.
func (s *SessionStore) consume(events <-chan domainauth.Event) {
	for ev := range events {
		s.handleEvent(ev)
	}
}

// handleEvent adopts the session carried by ev. It never calls the provider.
func (s *SessionStore) handleEvent(ev domainauth.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	loadFor := s.adoptLocked(ev.Session)
	// The event kind is ignored here: signed_out settles loading only when no
	// foreground operation owns it, like every other event.
	s.settleLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Debug("auth state changed", "event", ev.Kind, "has_session", ev.Session != nil)
	s.scheduleProfileLoad(loadFor)
}

func (s *SessionStore) runAuth(ctx context.Context, op string, call func(context.Context) (*domainauth.Session, error)) error {
	start := time.Now()
	s.begin(true)
	defer s.end(true)

	callCtx, cancel := s.callContext(ctx)
	sess, err := call(callCtx)
	cancel()
	if err != nil {
		err = toAuthError(err, "Authentication failed")
		s.logger.WarnContext(ctx, "auth operation failed", "operation", op, "error", err)
		metrics.EmitAuthOperation(s.metrics, metrics.AuthMetric{
			Operation: op,
			Result:    metrics.ResultError,
			Duration:  time.Since(start),
			Err:       err,
		})
		return err
	}

	if sess != nil {
		s.mu.Lock()
		var loadFor string
		if !s.closed {
			loadFor = s.adoptLocked(sess)
			s.publishLocked()
		}
		s.mu.Unlock()
		s.scheduleProfileLoad(loadFor)
	}

	s.logger.InfoContext(ctx, "auth operation succeeded", "operation", op, "has_session", sess != nil)
	metrics.EmitAuthOperation(s.metrics, metrics.AuthMetric{
		Operation: op,
		Result:    metrics.ResultSuccess,
		Duration:  time.Since(start),
	})
	return nil
}

func (s *SessionStore) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// begin marks a foreground operation as started and raises loading.
func (s *SessionStore) begin(auth bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if auth {
		s.authInFlight++
	} else {
		s.pending++
	}
	if !s.loading {
		s.loading = true
		s.publishLocked()
	}
}

// end marks a foreground operation as finished and settles loading.
func (s *SessionStore) end(auth bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if auth {
		s.authInFlight--
	} else {
		s.pending--
	}
	if s.settleLocked() {
		s.publishLocked()
	}
}

// settleLocked clears loading when no foreground work owns it and reports whether it changed.
func (s *SessionStore) settleLocked() bool {
	if !s.loading || s.pending > 0 || s.authInFlight > 0 {
		return false
	}
	s.loading = false
	return true
}

// adoptLocked replaces session and user. The profile is dropped whenever the
// user goes away or changes. It returns the user id whose profile should be loaded.
func (s *SessionStore) adoptLocked(sess *domainauth.Session) string {
	prev := s.user
	s.session = sess
	s.user = nil
	if sess != nil {
		s.user = sess.User
	}
	if s.user == nil || prev == nil || prev.ID != s.user.ID {
		s.profile = nil
	}
	s.epoch++
	metrics.EmitSessionActive(s.metrics, s.session != nil)
	if s.refresh != nil {
		s.refresh.Reschedule()
	}

	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *SessionStore) clearLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.adoptLocked(nil)
	s.publishLocked()
}

// scheduleProfileLoad fetches the profile for userID in the background.
// The result is adopted only if userID is still the current user.
func (s *SessionStore) scheduleProfileLoad(userID string) {
	if userID == "" || s.profiles == nil {
		return
	}

	s.tasks.post(func() {
		profile, ok := s.profiles.Load(s.ctx, userID)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.user == nil || s.user.ID != userID {
			return
		}
		s.profile = profile
		s.publishLocked()
	})
}

// expireSession is the refresh scheduler's exhaustion handler.
func (s *SessionStore) expireSession(ctx context.Context) {
	if err := s.SignOut(ctx); err != nil {
		s.logger.WarnContext(ctx, "sign-out after failed renewal", "error", err)
	}
}

func (s *SessionStore) currentSession() *domainauth.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *SessionStore) snapshotLocked() domainauth.Snapshot {
	return domainauth.Snapshot{
		Session: s.session,
		User:    s.user,
		Profile: s.profile,
		Loading: s.loading,
	}
}

// publishLocked delivers the current state to every watcher, replacing any
// snapshot the watcher has not read yet.
func (s *SessionStore) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func requireCredentials(email, password string) error {
	if email == "" {
		return apperrors.ValidationField("email", "Email is required")
	}
	if password == "" {
		return apperrors.ValidationField("password", "Password is required")
	}
	return nil
}

// toAuthError normalizes a provider failure into an *errors.AppError.
func toAuthError(err error, message string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, "Request was canceled.")
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, message)
	}
}
