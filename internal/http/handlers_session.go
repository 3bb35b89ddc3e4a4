package httpx

import (
	"net/http"
	"time"

	"github.com/bellsbank/bellsbank/internal/data"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
)

// SessionHandlers serves the session store's state. Tokens are never written.
type SessionHandlers struct {
	Store     SessionReader
	Refresher ManualRefresher
	Clock     data.TimeProvider
}

// SessionView is the redacted JSON form of a snapshot.
type SessionView struct {
	Loading     bool                `json:"loading"`
	NeedsSignIn bool                `json:"needs_sign_in"`
	User        *domainauth.User    `json:"user"`
	Session     *SessionSummary     `json:"session"`
	Profile     *domainauth.Profile `json:"profile"`
}

// SessionSummary describes a session without its tokens.
type SessionSummary struct {
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
	HasRefreshToken  bool      `json:"has_refresh_token"`
}

// NewSessionView redacts snap as of now.
func NewSessionView(snap domainauth.Snapshot, now time.Time) SessionView {
	view := SessionView{
		Loading:     snap.Loading,
		NeedsSignIn: snap.NeedsSignIn(),
		User:        snap.User,
		Profile:     snap.Profile,
	}
	if s := snap.Session; s != nil {
		remaining := max(s.ExpiresAt.Sub(now), 0)
		view.Session = &SessionSummary{
			TokenType:        s.TokenType,
			ExpiresAt:        s.ExpiresAt,
			ExpiresInSeconds: int64(remaining / time.Second),
			HasRefreshToken:  s.RefreshToken != "",
		}
	}
	return view
}

// Get writes the current snapshot.
func (h *SessionHandlers) Get(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, NewSessionView(h.Store.Snapshot(), h.Clock.Now()))
}

// Health answers liveness probes. It never consults the store.
func (h *SessionHandlers) Health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports 503 until the store has settled its initial state.
func (h *SessionHandlers) Ready(w http.ResponseWriter, _ *http.Request) {
	if h.Store.Snapshot().Loading {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Refresh runs a manual renewal. A renewal already in flight answers 409.
// The renewed session reaches the store asynchronously, so the returned view
// may still show the previous expiry.
func (h *SessionHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.Refresher.SafeRefresh(r.Context()) {
		WriteJSON(w, http.StatusConflict, errorBody{
			Error:   "refresh_in_progress",
			Message: "a refresh is already in progress",
		})
		return
	}
	WriteJSON(w, http.StatusOK, NewSessionView(h.Store.Snapshot(), h.Clock.Now()))
}
