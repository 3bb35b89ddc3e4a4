// Package memory provides in-process adapters for development and single-process use.
package memory

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	"github.com/bellsbank/bellsbank/internal/ports"
)

const (
	defaultTTL             = 30 * 24 * time.Hour
	defaultCleanupInterval = 10 * time.Minute
)

var _ ports.SessionPersistence = (*TokenStore)(nil)

// TokenStore keeps session bundles in process memory. Contents are lost on exit.
type TokenStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewTokenStore creates a token store that retains bundles for ttl (720h when zero).
func NewTokenStore(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &TokenStore{
		cache: gocache.New(ttl, defaultCleanupInterval),
		ttl:   ttl,
	}
}

func (s *TokenStore) Save(_ context.Context, key string, sess domainauth.Session) error {
	if key == "" {
		return errors.New("storage key cannot be empty")
	}
	s.cache.Set(key, sess, s.ttl)
	return nil
}

func (s *TokenStore) Load(_ context.Context, key string) (domainauth.Session, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	sess, ok := v.(domainauth.Session)
	if !ok {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	return sess, nil
}

func (s *TokenStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
