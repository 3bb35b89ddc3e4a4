package ports

// Package ports defines interfaces (hexagonal ports) for identity-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
)

// ErrSessionNotFound is returned by SessionPersistence when nothing is stored under a key.
var ErrSessionNotFound = errors.New("session not found")

// SignUpInput groups parameters for a registration call.
type SignUpInput struct {
	Email      string
	Password   string
	Metadata   domainauth.SignUpMetadata
	RedirectTo string
}

// Subscription is a live registration on the provider's session-change stream.
// Events is closed after Unsubscribe returns.
type Subscription interface {
	Events() <-chan domainauth.Event
	Unsubscribe()
}

// IdentityProvider is the identity service the session store synchronizes with.
type IdentityProvider interface {
	// CurrentSession returns the persisted session, or nil when signed out.
	CurrentSession(ctx context.Context) (*domainauth.Session, error)

	SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error)

	// SignUp registers a user. A nil session with a nil error means the provider
	// requires confirmation before the account can sign in.
	SignUp(ctx context.Context, in SignUpInput) (*domainauth.Session, error)

	SignOut(ctx context.Context) error

	// RefreshSession exchanges the refresh token for a new session.
	RefreshSession(ctx context.Context) (*domainauth.Session, error)

	// StopAutoRefresh and StartAutoRefresh control the provider's own refresh timer.
	StopAutoRefresh()
	StartAutoRefresh()

	// Subscribe registers for session-change events.
	Subscribe() Subscription
}

// SessionRefresher is the subset of IdentityProvider the refresh scheduler needs.
type SessionRefresher interface {
	RefreshSession(ctx context.Context) (*domainauth.Session, error)
	StopAutoRefresh()
	StartAutoRefresh()
}

// ProfileRepository fetches profile records.
type ProfileRepository interface {
	// FindByUserID returns (nil, nil) when the user has no profile.
	FindByUserID(ctx context.Context, userID string) (*domainauth.Profile, error)
}

// ProfileWriter provisions profile records for newly registered users.
type ProfileWriter interface {
	Create(ctx context.Context, req domainauth.CreateProfileRequest) (*domainauth.Profile, error)
}

// VisibilitySource reports foreground/background transitions of the application.
// The returned func releases the watch and closes the channel.
type VisibilitySource interface {
	Watch() (<-chan domainauth.Visibility, func())
}

// RegisterInput carries registration parameters to a TokenBackend.
type RegisterInput struct {
	Email      string
	Password   string
	Metadata   map[string]any
	RedirectTo string
}

// TokenBackend performs the network side of the identity provider.
type TokenBackend interface {
	PasswordLogin(ctx context.Context, email, password string) (domainauth.Session, error)

	// Register returns a nil session when the account awaits confirmation.
	Register(ctx context.Context, in RegisterInput) (*domainauth.Session, error)

	Refresh(ctx context.Context, prev domainauth.Session) (domainauth.Session, error)
	Revoke(ctx context.Context, sess domainauth.Session) error
}

// SessionPersistence stores the provider's session bundle between runs.
type SessionPersistence interface {
	Save(ctx context.Context, key string, sess domainauth.Session) error
	// Load returns ErrSessionNotFound when nothing is stored.
	Load(ctx context.Context, key string) (domainauth.Session, error)
	Delete(ctx context.Context, key string) error
}
