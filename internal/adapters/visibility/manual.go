// Package visibility provides foreground/background sources for the refresh scheduler.
package visibility

import (
	"sync"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	"github.com/bellsbank/bellsbank/internal/ports"
)

var _ ports.VisibilitySource = (*Manual)(nil)

// Manual is a VisibilitySource the application drives directly.
// Each watcher holds only the latest state; a slow watcher never blocks Set.
type Manual struct {
	mu       sync.Mutex
	current  domainauth.Visibility
	watchers map[int]chan domainauth.Visibility
	nextID   int
}

// NewManual returns a Manual source that starts visible.
func NewManual() *Manual {
	return &Manual{
		current:  domainauth.VisibilityVisible,
		watchers: make(map[int]chan domainauth.Visibility),
	}
}

// Watch registers a watcher. Only transitions made after Watch are delivered.
func (m *Manual) Watch() (<-chan domainauth.Visibility, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan domainauth.Visibility, 1)
	m.watchers[id] = ch

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if w, ok := m.watchers[id]; ok {
				delete(m.watchers, id)
				close(w)
			}
		})
	}
	return ch, release
}

// SetVisible records a transition. Repeating the current state is a no-op.
func (m *Manual) SetVisible(visible bool) {
	v := domainauth.VisibilityHidden
	if visible {
		v = domainauth.VisibilityVisible
	}
	m.Set(v)
}

// Set records a transition to v.
func (m *Manual) Set(v domainauth.Visibility) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v == m.current {
		return
	}
	m.current = v
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Current returns the last recorded state.
func (m *Manual) Current() domainauth.Visibility {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close releases every watcher.
func (m *Manual) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
}
