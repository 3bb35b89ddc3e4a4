package auth

import "time"

// EventKind identifies why the provider's session changed.
type EventKind string

const (
	EventInitialSession EventKind = "initial_session"
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
	EventUserUpdated    EventKind = "user_updated"
)

// Event is a session change emitted by the identity provider.
// Session is nil for sign-out events.
type Event struct {
	Kind    EventKind
	Session *Session
	At      time.Time
}
