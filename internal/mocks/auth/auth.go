package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bellsbank/bellsbank/internal/adapters/identity"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider  = (*FakeIdentityProvider)(nil)
	_ ports.ProfileRepository = (*MemoryProfileRepo)(nil)
	_ ports.VisibilitySource  = (*ManualVisibility)(nil)
)

// FakeIdentityProvider simulates an identity service with a fixed set of accounts.
// Each operation can be overridden with a Func hook; hooks may block to hold
// an operation in flight.
type FakeIdentityProvider struct {
	CurrentSessionFunc func(ctx context.Context) (*domainauth.Session, error)
	SignInFunc         func(ctx context.Context, email, password string) (*domainauth.Session, error)
	SignUpFunc         func(ctx context.Context, in ports.SignUpInput) (*domainauth.Session, error)
	SignOutFunc        func(ctx context.Context) error
	RefreshFunc        func(ctx context.Context) (*domainauth.Session, error)

	// Passwords maps email to password for the default sign-in behavior.
	Passwords map[string]string
	// TTL is the lifetime of sessions issued by the default behaviors.
	TTL time.Duration

	hub *identity.Hub

	mu      sync.Mutex
	session *domainauth.Session
	lookups []bool

	SignInCalls  atomic.Int32
	SignUpCalls  atomic.Int32
	SignOutCalls atomic.Int32
	RefreshCalls atomic.Int32
	AutoStops    atomic.Int32
	AutoStarts   atomic.Int32
}

// NewFakeIdentityProvider creates a provider that knows the given accounts.
func NewFakeIdentityProvider(passwords map[string]string) *FakeIdentityProvider {
	if passwords == nil {
		passwords = map[string]string{}
	}
	return &FakeIdentityProvider{
		Passwords: passwords,
		TTL:       time.Hour,
		hub:       identity.NewHub(),
	}
}

// SetSession sets the stored session without emitting an event.
func (f *FakeIdentityProvider) SetSession(sess *domainauth.Session) {
	f.mu.Lock()
	f.session = sess
	f.mu.Unlock()
}

// Emit publishes an event to subscribers, blocking until each has received it.
func (f *FakeIdentityProvider) Emit(kind domainauth.EventKind, sess *domainauth.Session) {
	f.hub.Publish(domainauth.Event{Kind: kind, Session: sess, At: time.Now()})
}

// Subscribers reports the number of live subscriptions.
func (f *FakeIdentityProvider) Subscribers() int {
	return f.hub.Len()
}

// LookupsWithSubscription records, for each CurrentSession call, whether a
// subscription was active at the time.
func (f *FakeIdentityProvider) LookupsWithSubscription() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.lookups...)
}

func (f *FakeIdentityProvider) Subscribe() ports.Subscription {
	return f.hub.Subscribe()
}

func (f *FakeIdentityProvider) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, f.hub.Len() > 0)
	sess := f.session
	f.mu.Unlock()

	if f.CurrentSessionFunc != nil {
		return f.CurrentSessionFunc(ctx)
	}
	return sess, nil
}

func (f *FakeIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	f.SignInCalls.Add(1)
	if f.SignInFunc != nil {
		return f.SignInFunc(ctx, email, password)
	}

	want, ok := f.Passwords[email]
	if !ok || want != password {
		return nil, apperrors.InvalidCredentials(nil)
	}
	sess := f.issue(email, nil)
	f.Emit(domainauth.EventSignedIn, sess)
	return sess, nil
}

func (f *FakeIdentityProvider) SignUp(ctx context.Context, in ports.SignUpInput) (*domainauth.Session, error) {
	f.SignUpCalls.Add(1)
	if f.SignUpFunc != nil {
		return f.SignUpFunc(ctx, in)
	}

	if _, exists := f.Passwords[in.Email]; exists {
		return nil, apperrors.AlreadyRegistered(nil)
	}
	f.Passwords[in.Email] = in.Password
	sess := f.issue(in.Email, in.Metadata.Map())
	f.Emit(domainauth.EventSignedIn, sess)
	return sess, nil
}

func (f *FakeIdentityProvider) SignOut(ctx context.Context) error {
	f.SignOutCalls.Add(1)
	f.SetSession(nil)
	f.Emit(domainauth.EventSignedOut, nil)
	if f.SignOutFunc != nil {
		return f.SignOutFunc(ctx)
	}
	return nil
}

func (f *FakeIdentityProvider) RefreshSession(ctx context.Context) (*domainauth.Session, error) {
	f.RefreshCalls.Add(1)
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx)
	}

	f.mu.Lock()
	prev := f.session
	f.mu.Unlock()
	if prev == nil {
		return nil, apperrors.NoSession()
	}

	next := *prev
	next.AccessToken = prev.AccessToken + "+"
	next.ExpiresAt = time.Now().Add(f.TTL)
	f.SetSession(&next)
	f.Emit(domainauth.EventTokenRefreshed, &next)
	return &next, nil
}

func (f *FakeIdentityProvider) StopAutoRefresh()  { f.AutoStops.Add(1) }
func (f *FakeIdentityProvider) StartAutoRefresh() { f.AutoStarts.Add(1) }

func (f *FakeIdentityProvider) issue(email string, meta map[string]any) *domainauth.Session {
	sess := &domainauth.Session{
		AccessToken:  "access-" + email,
		RefreshToken: "refresh-" + email,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(f.TTL),
		User:         &domainauth.User{ID: "user-" + email, Email: email, Metadata: meta},
	}
	f.SetSession(sess)
	return sess
}

// MemoryProfileRepo is an in-memory ProfileRepository keyed by user id.
type MemoryProfileRepo struct {
	FindFunc func(ctx context.Context, userID string) (*domainauth.Profile, error)

	mu       sync.Mutex
	profiles map[string]*domainauth.Profile
	calls    int
}

// NewMemoryProfileRepo creates an empty MemoryProfileRepo.
func NewMemoryProfileRepo() *MemoryProfileRepo {
	return &MemoryProfileRepo{profiles: make(map[string]*domainauth.Profile)}
}

// Put stores p under its UserID.
func (m *MemoryProfileRepo) Put(p domainauth.Profile) {
	m.mu.Lock()
	m.profiles[p.UserID] = &p
	m.mu.Unlock()
}

// Calls reports how many lookups were made.
func (m *MemoryProfileRepo) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MemoryProfileRepo) FindByUserID(ctx context.Context, userID string) (*domainauth.Profile, error) {
	m.mu.Lock()
	m.calls++
	p := m.profiles[userID]
	m.mu.Unlock()

	if m.FindFunc != nil {
		return m.FindFunc(ctx, userID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// ManualVisibility is a VisibilitySource driven by the test.
type ManualVisibility struct {
	mu       sync.Mutex
	ch       chan domainauth.Visibility
	released atomic.Bool
}

// NewManualVisibility creates a ManualVisibility.
func NewManualVisibility() *ManualVisibility {
	return &ManualVisibility{ch: make(chan domainauth.Visibility)}
}

func (m *ManualVisibility) Watch() (<-chan domainauth.Visibility, func()) {
	var once sync.Once
	return m.ch, func() {
		once.Do(func() { m.released.Store(true) })
	}
}

// Send reports a visibility change, blocking until the watcher receives it.
func (m *ManualVisibility) Send(v domainauth.Visibility) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ch <- v
}

// Released reports whether the watcher released its watch.
func (m *ManualVisibility) Released() bool {
	return m.released.Load()
}
