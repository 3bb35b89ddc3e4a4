package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/bellsbank/bellsbank/config"
	"github.com/bellsbank/bellsbank/internal/adapters/devauth"
	"github.com/bellsbank/bellsbank/internal/adapters/identity"
	"github.com/bellsbank/bellsbank/internal/adapters/memory"
	"github.com/bellsbank/bellsbank/internal/adapters/oidc"
	redisadapter "github.com/bellsbank/bellsbank/internal/adapters/redis"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	"github.com/bellsbank/bellsbank/internal/ports"
)

// IdentityDeps contains configuration for the identity client.
type IdentityDeps struct {
	Identity config.IdentityConfig
	Session  config.SessionConfig
	// RedisClient is required when Session.Persistence is redis.
	RedisClient redis.UniversalClient
	// Profiles provisions profiles for dev-backend registrations (optional).
	Profiles ProfileStore
	Logger   *slog.Logger
}

// ProfileStore reads and provisions profiles.
type ProfileStore interface {
	ports.ProfileRepository
	ports.ProfileWriter
}

// BuildIdentityClient creates the identity client for the configured backend and persistence.
func BuildIdentityClient(ctx context.Context, deps IdentityDeps) (*identity.Client, error) {
	backend, err := BuildTokenBackend(ctx, deps)
	if err != nil {
		return nil, err
	}
	store, err := BuildSessionPersistence(deps)
	if err != nil {
		return nil, err
	}

	return identity.NewClient(identity.ClientOptions{
		Backend:    backend,
		Store:      store,
		StorageKey: deps.Identity.StorageKey,
		// The refresh scheduler takes over renewal once the session store starts it.
		AutoRefresh: true,
		Logger:      deps.Logger,
	})
}

// BuildTokenBackend creates the token backend for the configured identity mode.
//
//nolint:ireturn // the backend is chosen at runtime.
func BuildTokenBackend(ctx context.Context, deps IdentityDeps) (ports.TokenBackend, error) {
	switch deps.Identity.Mode {
	case config.IdentityModeMock:
		return buildDevBackend(ctx, deps)
	case config.IdentityModeOAuth:
		oauth := deps.Identity.OAuth
		backend, err := oidc.NewBackend(ctx, oidc.BackendConfig{
			ClientID:      oauth.ClientID,
			ClientSecret:  oauth.ClientSecret,
			DiscoveryURL:  oauth.DiscoveryURL,
			RegisterURL:   oauth.RegisterURL,
			Scope:         oauth.Scope,
			MetadataQuery: oauth.MetadataQuery,
		})
		if err != nil {
			return nil, fmt.Errorf("create oauth backend: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported identity mode %q", deps.Identity.Mode)
	}
}

func buildDevBackend(ctx context.Context, deps IdentityDeps) (*devauth.Backend, error) {
	dev := deps.Identity.DevAuth
	cfg := devauth.Config{
		SigningKey: []byte(dev.SigningKey),
		Accounts: []devauth.Account{{
			Email:    dev.Email,
			Password: dev.Password,
			Metadata: domainauth.SignUpMetadata{FullName: dev.FullName}.Map(),
		}},
		AccessTTL:           dev.AccessTTL,
		RequireConfirmation: dev.RequireConfirmation,
	}
	if deps.Profiles != nil {
		profiles := deps.Profiles
		cfg.Provision = func(ctx context.Context, u domainauth.User) error {
			_, err := profiles.Create(ctx, domainauth.ProfileRequestForUser(u))
			return err
		}
	}

	backend, err := devauth.NewBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("create dev backend: %w", err)
	}

	if deps.Profiles != nil {
		if err := provisionSeeds(ctx, deps.Profiles, backend.Seeded()); err != nil {
			return nil, err
		}
	}
	if deps.Logger != nil {
		deps.Logger.WarnContext(ctx, "dev identity backend enabled", "email", dev.Email)
	}
	return backend, nil
}

// provisionSeeds creates missing profiles for seeded dev accounts.
func provisionSeeds(ctx context.Context, profiles ProfileStore, users []domainauth.User) error {
	for _, u := range users {
		existing, err := profiles.FindByUserID(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("look up seeded profile: %w", err)
		}
		if existing != nil {
			continue
		}
		if _, err := profiles.Create(ctx, domainauth.ProfileRequestForUser(u)); err != nil {
			return fmt.Errorf("provision seeded profile: %w", err)
		}
	}
	return nil
}

// BuildSessionPersistence creates the store holding the identity client's session bundle.
//
//nolint:ireturn // persistence is chosen at runtime.
func BuildSessionPersistence(deps IdentityDeps) (ports.SessionPersistence, error) {
	switch deps.Session.Persistence {
	case config.PersistenceMemory:
		return memory.NewTokenStore(deps.Session.PersistTTL), nil
	case config.PersistenceRedis:
		if deps.RedisClient == nil {
			return nil, errors.New("redis session persistence requires a redis client")
		}
		return redisadapter.NewTokenStore(redisadapter.TokenStoreOptions{
			Client: deps.RedisClient,
			Prefix: deps.Session.RedisPrefix,
			TTL:    deps.Session.PersistTTL,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported session persistence %q", deps.Session.Persistence)
	}
}
