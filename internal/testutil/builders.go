// Package testutil provides testing utilities and helpers for the session engine.
package testutil

import (
	"time"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
)

// SessionBuilder provides a fluent interface for building Session values for testing.
type SessionBuilder struct {
	sess domainauth.Session
}

// NewSession creates a new SessionBuilder with sensible defaults.
func NewSession() *SessionBuilder {
	return &SessionBuilder{
		sess: domainauth.Session{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			TokenType:    "bearer",
			ExpiresAt:    TestTime().Add(time.Hour),
			User: &domainauth.User{
				ID:    "00000000-0000-0000-0000-000000000001",
				Email: "student@example.com",
			},
		},
	}
}

// WithUser sets the user id and email.
func (b *SessionBuilder) WithUser(id, email string) *SessionBuilder {
	b.sess.User = &domainauth.User{ID: id, Email: email}
	return b
}

// WithoutUser clears the user.
func (b *SessionBuilder) WithoutUser() *SessionBuilder {
	b.sess.User = nil
	return b
}

// WithTokens sets the access and refresh tokens.
func (b *SessionBuilder) WithTokens(access, refresh string) *SessionBuilder {
	b.sess.AccessToken = access
	b.sess.RefreshToken = refresh
	return b
}

// ExpiresAt sets the access token expiry.
func (b *SessionBuilder) ExpiresAt(t time.Time) *SessionBuilder {
	b.sess.ExpiresAt = t
	return b
}

// Build returns the session value.
func (b *SessionBuilder) Build() domainauth.Session {
	return b.sess
}

// BuildPtr returns a pointer to a copy of the session.
func (b *SessionBuilder) BuildPtr() *domainauth.Session {
	s := b.sess
	return &s
}

// ProfileBuilder provides a fluent interface for building Profile values for testing.
type ProfileBuilder struct {
	p domainauth.Profile
}

// NewProfile creates a new ProfileBuilder for userID.
func NewProfile(userID string) *ProfileBuilder {
	now := TestTime()
	return &ProfileBuilder{
		p: domainauth.Profile{
			UserID:       userID,
			FullName:     "Test Student",
			Email:        "student@example.com",
			MatricNumber: "BU/21/0001",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

// WithName sets the full name.
func (b *ProfileBuilder) WithName(name string) *ProfileBuilder {
	b.p.FullName = name
	return b
}

// WithEmail sets the email.
func (b *ProfileBuilder) WithEmail(email string) *ProfileBuilder {
	b.p.Email = email
	return b
}

// WithMatricNumber sets the matric number.
func (b *ProfileBuilder) WithMatricNumber(n string) *ProfileBuilder {
	b.p.MatricNumber = n
	return b
}

// WithPhone sets the phone number.
func (b *ProfileBuilder) WithPhone(phone string) *ProfileBuilder {
	b.p.PhoneNumber = &phone
	return b
}

// Build returns the profile value.
func (b *ProfileBuilder) Build() domainauth.Profile {
	return b.p
}
