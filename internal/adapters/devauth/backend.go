package devauth

// Package devauth provides a self-contained, in-memory TokenBackend for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bellsbank/bellsbank/internal/data"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/ports"
)

const (
	defaultAccessTTL = time.Hour
	issuer           = "bellsbank-devauth"
)

var _ ports.TokenBackend = (*Backend)(nil)

// Account seeds a user the backend accepts at startup.
type Account struct {
	Email    string
	Password string
	Metadata map[string]any
}

// ProvisionFunc runs after an account is registered, before its session is
// issued. Returning an error rolls the registration back.
type ProvisionFunc func(ctx context.Context, user domainauth.User) error

// Config controls the dev backend behavior.
type Config struct {
	// SigningKey signs access tokens (HS256). Required.
	SigningKey []byte
	Accounts   []Account
	AccessTTL  time.Duration // default 1h when zero
	// RequireConfirmation makes Register return no session, as a provider
	// with email confirmation would.
	RequireConfirmation bool
	Provision           ProvisionFunc
	Clock               data.TimeProvider
	// BcryptCost defaults to bcrypt.DefaultCost; tests lower it.
	BcryptCost int
}

type account struct {
	user domainauth.User
	hash []byte
}

// Backend implements ports.TokenBackend entirely in memory. Access tokens are
// HS256 JWTs; refresh tokens are opaque and rotate on every use.
type Backend struct {
	key         []byte
	ttl         time.Duration
	confirm     bool
	provision   ProvisionFunc
	clock       data.TimeProvider
	cost        int
	jwtParser   *jwt.Parser
	mu          sync.Mutex
	byEmail     map[string]*account
	refreshToID map[string]string
}

// NewBackend constructs a dev backend from Config.
func NewBackend(cfg Config) (*Backend, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("dev auth: SigningKey is required")
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	b := &Backend{
		key:       cfg.SigningKey,
		ttl:       ttl,
		confirm:   cfg.RequireConfirmation,
		provision: cfg.Provision,
		clock:     clock,
		cost:      cost,
		jwtParser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		byEmail:     make(map[string]*account),
		refreshToID: make(map[string]string),
	}

	for _, a := range cfg.Accounts {
		if _, err := b.addAccount(seedID(a.Email), a.Email, a.Password, a.Metadata); err != nil {
			return nil, fmt.Errorf("dev auth: seed %q: %w", a.Email, err)
		}
	}
	return b, nil
}

// PasswordLogin checks the password against the stored bcrypt hash.
func (b *Backend) PasswordLogin(_ context.Context, email, password string) (domainauth.Session, error) {
	b.mu.Lock()
	acct := b.byEmail[normalizeEmail(email)]
	b.mu.Unlock()

	if acct == nil {
		return domainauth.Session{}, apperrors.InvalidCredentials(nil)
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return domainauth.Session{}, apperrors.InvalidCredentials(err)
	}
	return b.issue(acct.user)
}

// Register creates an account and provisions it.
func (b *Backend) Register(ctx context.Context, in ports.RegisterInput) (*domainauth.Session, error) {
	if len(in.Password) < 6 {
		return nil, apperrors.ValidationField("password", "Password should be at least 6 characters")
	}

	acct, err := b.addAccount(uuid.NewString(), in.Email, in.Password, in.Metadata)
	if err != nil {
		return nil, err
	}

	if b.provision != nil {
		if err := b.provision(ctx, acct.user); err != nil {
			b.mu.Lock()
			delete(b.byEmail, normalizeEmail(in.Email))
			b.mu.Unlock()
			return nil, fmt.Errorf("provision account: %w", err)
		}
	}

	if b.confirm {
		return nil, nil
	}
	sess, err := b.issue(acct.user)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Refresh rotates prev's refresh token. The previous access token, when
// present, must have been issued by this backend to the same user.
func (b *Backend) Refresh(_ context.Context, prev domainauth.Session) (domainauth.Session, error) {
	if prev.RefreshToken == "" {
		return domainauth.Session{}, apperrors.NoSession()
	}

	b.mu.Lock()
	userID, ok := b.refreshToID[prev.RefreshToken]
	if ok {
		delete(b.refreshToID, prev.RefreshToken)
	}
	user := b.userByIDLocked(userID)
	b.mu.Unlock()

	if !ok || user == nil {
		return domainauth.Session{}, apperrors.InvalidCredentials(errors.New("unknown refresh token"))
	}

	if prev.AccessToken != "" {
		sub, err := b.subject(prev.AccessToken)
		if err != nil || sub != userID {
			return domainauth.Session{}, apperrors.InvalidCredentials(errors.New("access token does not match refresh token"))
		}
	}
	return b.issue(*user)
}

// Revoke forgets the session's refresh token.
func (b *Backend) Revoke(_ context.Context, sess domainauth.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refreshToID, sess.RefreshToken)
	return nil
}

// Seeded returns the users created from Config.Accounts.
func (b *Backend) Seeded() []domainauth.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	var users []domainauth.User
	for _, acct := range b.byEmail {
		if acct.user.ID == seedID(acct.user.Email) {
			users = append(users, acct.user)
		}
	}
	return users
}

// seedID derives a stable id for a seeded account so that records keyed by
// it (profiles) survive restarts.
func seedID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("bellsbank-devauth:"+normalizeEmail(email))).String()
}

func (b *Backend) addAccount(id, email, password string, meta map[string]any) (*account, error) {
	key := normalizeEmail(email)
	if key == "" {
		return nil, apperrors.ValidationField("email", "Email is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.byEmail[key]; exists {
		return nil, apperrors.AlreadyRegistered(nil)
	}

	acct := &account{
		user: domainauth.User{
			ID:        id,
			Email:     key,
			Metadata:  meta,
			CreatedAt: b.clock.Now().UTC(),
		},
		hash: hash,
	}
	b.byEmail[key] = acct
	return acct, nil
}

func (b *Backend) userByIDLocked(id string) *domainauth.User {
	for _, acct := range b.byEmail {
		if acct.user.ID == id {
			u := acct.user
			return &u
		}
	}
	return nil
}

// issue mints an access token and a fresh refresh token for user.
func (b *Backend) issue(user domainauth.User) (domainauth.Session, error) {
	now := b.clock.Now()
	exp := now.Add(b.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	})
	access, err := token.SignedString(b.key)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := randomString(32)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("generate refresh token: %w", err)
	}

	b.mu.Lock()
	b.refreshToID[refresh] = user.ID
	b.mu.Unlock()

	return domainauth.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    exp,
		User:         &user,
	}, nil
}

// subject verifies raw's signature and returns its subject. Expiry is not
// checked; an expired access token is normal at refresh time.
func (b *Backend) subject(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := b.jwtParser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return b.key, nil
	})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
