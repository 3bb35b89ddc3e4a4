package auth

// Package auth contains domain-level types for identity state: sessions, users,
// profiles and the events an identity provider emits.
// It is pure and free of framework/adapter concerns.

import "time"

// User is the identity principal attached to a session.
// Adapters map provider-specific claims into this shape.
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
}

// Session is the token bundle issued by the identity provider.
// A Session is never mutated after it is issued; holders replace it wholesale.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
}

// Expired reports whether the access token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !now.Before(s.ExpiresAt)
}

// ExpiresWithin reports whether the access token expires within d of now.
func (s *Session) ExpiresWithin(d time.Duration, now time.Time) bool {
	if s == nil {
		return true
	}
	return !now.Add(d).Before(s.ExpiresAt)
}

// UserID returns the id of the session's user, or "" when there is none.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// Profile is the application record kept for a user (name, institutional id,
// contact number and balance). It is created server-side at registration.
type Profile struct {
	ID             string    `db:"id"              json:"id"`
	UserID         string    `db:"user_id"         json:"user_id"`
	FullName       string    `db:"full_name"       json:"full_name"`
	Email          string    `db:"email"           json:"email"`
	MatricNumber   string    `db:"matric_number"   json:"matric_number"`
	PhoneNumber    *string   `db:"phone_number"    json:"phone_number,omitempty"`
	AccountBalance float64   `db:"account_balance" json:"account_balance"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// SignUpMetadata is the extra registration data stored with a new user.
type SignUpMetadata struct {
	FullName     string `json:"full_name"`
	MatricNumber string `json:"matric_number"`
	PhoneNumber  string `json:"phone_number"`
}

// Map returns the metadata in the key/value form providers accept.
func (m SignUpMetadata) Map() map[string]any {
	return map[string]any{
		"full_name":     m.FullName,
		"matric_number": m.MatricNumber,
		"phone_number":  m.PhoneNumber,
	}
}

// Snapshot is a consistent read of the identity state.
// Pointers inside a Snapshot refer to immutable values and must not be modified.
type Snapshot struct {
	Session *Session
	User    *User
	Profile *Profile
	Loading bool
}

// NeedsSignIn reports whether dependents should send the user to the sign-in page.
// Only a settled, session-less state qualifies; a loading state is never authoritative.
func (s Snapshot) NeedsSignIn() bool {
	return s.Session == nil && !s.Loading
}

// Visibility is the foreground state of the application surface.
type Visibility int

const (
	VisibilityHidden Visibility = iota
	VisibilityVisible
)

func (v Visibility) String() string {
	if v == VisibilityVisible {
		return "visible"
	}
	return "hidden"
}

// CreateProfileRequest carries the fields written when a profile is provisioned.
type CreateProfileRequest struct {
	UserID       string
	FullName     string
	Email        string
	MatricNumber string
	PhoneNumber  *string
}

// ProfileRequestForUser builds the provisioning request for a newly registered
// user from the metadata it signed up with.
func ProfileRequestForUser(u User) CreateProfileRequest {
	str := func(key string) string {
		s, _ := u.Metadata[key].(string)
		return s
	}
	req := CreateProfileRequest{
		UserID:       u.ID,
		FullName:     str("full_name"),
		Email:        u.Email,
		MatricNumber: str("matric_number"),
	}
	if phone := str("phone_number"); phone != "" {
		req.PhoneNumber = &phone
	}
	return req
}
