package redis

// Package redis provides Redis-based adapters for the session engine.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	"github.com/bellsbank/bellsbank/internal/ports"
)

const (
	defaultKeyPrefix = "bellsbank:session:"
	defaultTTL       = 30 * 24 * time.Hour
)

var _ ports.SessionPersistence = (*TokenStore)(nil)

// TokenStoreOptions configures a TokenStore.
type TokenStoreOptions struct {
	Client redis.UniversalClient // Required
	Prefix string                // Optional: key prefix, defaults to "bellsbank:session:"
	TTL    time.Duration         // Optional: how long a bundle is retained, defaults to 720h
}

// TokenStore persists the identity provider's session bundle in Redis.
//
// Bundles are kept for TTL regardless of access token expiry: an expired
// access token is still useful for its refresh token.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewTokenStore creates a new Redis-based token store.
func NewTokenStore(opts TokenStoreOptions) *TokenStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &TokenStore{client: opts.Client, prefix: prefix, ttl: ttl}
}

func (s *TokenStore) Save(ctx context.Context, key string, sess domainauth.Session) error {
	if key == "" {
		return errors.New("storage key cannot be empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *TokenStore) Load(ctx context.Context, key string) (domainauth.Session, error) {
	if key == "" {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ports.ErrSessionNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal(data, &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	return sess, nil
}

func (s *TokenStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
