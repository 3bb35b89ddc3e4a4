// Package identity implements the identity provider client the session store
// synchronizes with: it persists the session bundle, renews it, and announces
// every change to subscribers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bellsbank/bellsbank/internal/data"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/ports"
)

const (
	// DefaultStorageKey is the persistence key of the session bundle.
	DefaultStorageKey = "bellsbank.auth.token"

	defaultAutoRefreshTick   = 30 * time.Second
	defaultAutoRefreshMargin = 90 * time.Second
)

var _ ports.IdentityProvider = (*Client)(nil)

// ClientOptions groups dependencies for Client.
type ClientOptions struct {
	Backend    ports.TokenBackend       // Required: network side of the provider
	Store      ports.SessionPersistence // Required: session bundle persistence
	StorageKey string                   // Optional: defaults to DefaultStorageKey

	// AutoRefresh starts the client's own renewal loop on construction.
	AutoRefresh       bool
	AutoRefreshTick   time.Duration // Optional: how often the loop checks expiry (default 30s)
	AutoRefreshMargin time.Duration // Optional: renew when this close to expiry (default 90s)

	Clock  data.TimeProvider // Optional: defaults to the system clock
	Logger *slog.Logger      // Optional: structured logger
}

// Client is an identity provider backed by a TokenBackend.
type Client struct {
	backend ports.TokenBackend
	store   ports.SessionPersistence
	key     string
	clock   data.TimeProvider
	logger  *slog.Logger
	hub     *Hub
	group   singleflight.Group

	tick   time.Duration
	margin time.Duration

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}
}

// NewClient constructs a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Backend == nil {
		return nil, errors.New("TokenBackend is required")
	}
	if opts.Store == nil {
		return nil, errors.New("SessionPersistence is required")
	}

	key := opts.StorageKey
	if key == "" {
		key = DefaultStorageKey
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		backend: opts.Backend,
		store:   opts.Store,
		key:     key,
		clock:   clock,
		logger:  logger.With("component", "identity_client"),
		hub:     NewHub(),
		tick:    opts.AutoRefreshTick,
		margin:  opts.AutoRefreshMargin,
	}
	if c.tick <= 0 {
		c.tick = defaultAutoRefreshTick
	}
	if c.margin <= 0 {
		c.margin = defaultAutoRefreshMargin
	}

	if opts.AutoRefresh {
		c.StartAutoRefresh()
	}
	return c, nil
}

// Subscribe registers for session-change events.
func (c *Client) Subscribe() ports.Subscription {
	return c.hub.Subscribe()
}

// CurrentSession returns the persisted session. An expired bundle is renewed
// once; if renewal fails the bundle is discarded and nil is returned.
func (c *Client) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	sess, err := c.store.Load(ctx, c.key)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "load stored session")
	}

	if !sess.Expired(c.clock.Now()) {
		return &sess, nil
	}

	renewed, err := c.RefreshSession(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "stored session expired and could not be renewed", "error", err)
		if delErr := c.store.Delete(ctx, c.key); delErr != nil {
			c.logger.WarnContext(ctx, "failed to discard expired session", "error", delErr)
		}
		return nil, nil
	}
	return renewed, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	sess, err := c.backend.PasswordLogin(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, c.key, sess); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "persist session")
	}

	c.publish(domainauth.EventSignedIn, &sess)
	return &sess, nil
}

// SignUp registers a new account. A nil session means the account awaits confirmation.
func (c *Client) SignUp(ctx context.Context, in ports.SignUpInput) (*domainauth.Session, error) {
	sess, err := c.backend.Register(ctx, ports.RegisterInput{
		Email:      in.Email,
		Password:   in.Password,
		Metadata:   in.Metadata.Map(),
		RedirectTo: in.RedirectTo,
	})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		c.logger.InfoContext(ctx, "sign-up awaiting confirmation")
		return nil, nil
	}
	if err := c.store.Save(ctx, c.key, *sess); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "persist session")
	}

	c.publish(domainauth.EventSignedIn, sess)
	return sess, nil
}

// SignOut revokes the session and removes it locally. Local removal and the
// signed-out event happen even when revocation fails; the failure is returned.
func (c *Client) SignOut(ctx context.Context) error {
	var errs []error

	sess, err := c.store.Load(ctx, c.key)
	switch {
	case err == nil:
		if revokeErr := c.backend.Revoke(ctx, sess); revokeErr != nil {
			errs = append(errs, fmt.Errorf("revoke session: %w", revokeErr))
		}
	case !errors.Is(err, ports.ErrSessionNotFound):
		errs = append(errs, fmt.Errorf("load session: %w", err))
	}

	if delErr := c.store.Delete(ctx, c.key); delErr != nil {
		errs = append(errs, fmt.Errorf("delete session: %w", delErr))
	}

	c.publish(domainauth.EventSignedOut, nil)
	return errors.Join(errs...)
}

// RefreshSession exchanges the stored refresh token for a new session.
// Concurrent calls share one backend exchange.
func (c *Client) RefreshSession(ctx context.Context) (*domainauth.Session, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	sess := v.(domainauth.Session)
	return &sess, nil
}

func (c *Client) refresh(ctx context.Context) (domainauth.Session, error) {
	prev, err := c.store.Load(ctx, c.key)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return domainauth.Session{}, apperrors.NoSession()
		}
		return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "load stored session")
	}

	next, err := c.backend.Refresh(ctx, prev)
	if err != nil {
		if apperrors.IsInvalidCredentials(err) {
			// The refresh token is no longer accepted; the session is gone.
			if delErr := c.store.Delete(ctx, c.key); delErr != nil {
				c.logger.WarnContext(ctx, "failed to discard rejected session", "error", delErr)
			}
			c.publish(domainauth.EventSignedOut, nil)
		}
		return domainauth.Session{}, err
	}

	if next.User == nil {
		next.User = prev.User
	}
	if err := c.store.Save(ctx, c.key, next); err != nil {
		return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "persist session")
	}

	c.publish(domainauth.EventTokenRefreshed, &next)
	return next, nil
}

// StartAutoRefresh starts the client's renewal loop. It is a no-op when running.
func (c *Client) StartAutoRefresh() {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()
	if c.autoCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.autoCancel = cancel
	c.autoDone = make(chan struct{})
	go c.autoRefreshLoop(ctx, c.autoDone)
}

// StopAutoRefresh stops the renewal loop and waits for it to exit.
func (c *Client) StopAutoRefresh() {
	c.autoMu.Lock()
	cancel, done := c.autoCancel, c.autoDone
	c.autoCancel, c.autoDone = nil, nil
	c.autoMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops renewal and ends every subscription.
func (c *Client) Close() {
	c.StopAutoRefresh()
	c.hub.Close()
}

func (c *Client) autoRefreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.autoRefreshTick(ctx)
		}
	}
}

func (c *Client) autoRefreshTick(ctx context.Context) {
	sess, err := c.store.Load(ctx, c.key)
	if err != nil {
		return
	}
	if !sess.ExpiresWithin(c.margin, c.clock.Now()) {
		return
	}
	if _, err := c.RefreshSession(ctx); err != nil && ctx.Err() == nil {
		c.logger.WarnContext(ctx, "auto refresh failed", "error", err)
	}
}

func (c *Client) publish(kind domainauth.EventKind, sess *domainauth.Session) {
	c.hub.Publish(domainauth.Event{Kind: kind, Session: sess, At: c.clock.Now()})
}
