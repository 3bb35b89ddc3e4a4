package oidc

// Package oidc provides the OAuth2/OIDC token backend of the identity client.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/ports"
)

const (
	defaultMetadataQuery = "user_metadata"
	defaultTokenLifetime = time.Hour
	maxErrorBody         = 4096
)

var _ ports.TokenBackend = (*Backend)(nil)

// Backend implements ports.TokenBackend against an OAuth2 authorization server
// that supports the password and refresh-token grants.
type Backend struct {
	config        *oauth2.Config
	httpClient    *http.Client
	oidcProvider  *gooidc.Provider
	verifier      *gooidc.IDTokenVerifier
	registerURL   string
	revocationURL string
	metadataQuery string
	now           func() time.Time
}

// BackendConfig holds configuration for the OAuth2 backend.
type BackendConfig struct {
	ClientID     string
	ClientSecret string
	DiscoveryURL string
	RegisterURL  string
	Scope        string
	// MetadataQuery is a JMESPath expression selecting user metadata from the
	// user document (token response "user" object, ID token or userinfo claims).
	MetadataQuery string
	HTTPClient    *http.Client // Optional, defaults to a client with a cookie jar
}

// DiscoveryDocument represents the subset of the discovery document the backend reads.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	JwksURI               string `json:"jwks_uri"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
}

// NewBackend discovers the authorization server and creates a Backend.
func NewBackend(ctx context.Context, config BackendConfig) (*Backend, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	query := config.MetadataQuery
	if query == "" {
		query = defaultMetadataQuery
	}
	if _, err := jmespath.Compile(query); err != nil {
		return nil, fmt.Errorf("invalid metadata query: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient = &http.Client{Timeout: 30 * time.Second, Jar: jar}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	var doc DiscoveryDocument
	if claimsErr := op.Claims(&doc); claimsErr != nil {
		return nil, fmt.Errorf("decode discovery document: %w", claimsErr)
	}

	return &Backend{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       strings.Fields(config.Scope),
			Endpoint:     op.Endpoint(),
		},
		httpClient:    httpClient,
		oidcProvider:  op,
		verifier:      op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		registerURL:   config.RegisterURL,
		revocationURL: doc.RevocationEndpoint,
		metadataQuery: query,
		now:           time.Now,
	}, nil
}

// PasswordLogin exchanges an email and password for a session.
func (b *Backend) PasswordLogin(ctx context.Context, email, password string) (domainauth.Session, error) {
	tok, err := b.config.PasswordCredentialsToken(b.clientContext(ctx), email, password)
	if err != nil {
		return domainauth.Session{}, mapTokenError(err)
	}
	return b.sessionFromToken(ctx, tok, nil)
}

// Refresh exchanges prev's refresh token for a new session.
func (b *Backend) Refresh(ctx context.Context, prev domainauth.Session) (domainauth.Session, error) {
	if prev.RefreshToken == "" {
		return domainauth.Session{}, apperrors.NoSession()
	}

	// An expiry in the past forces the token source to use the refresh grant.
	src := b.config.TokenSource(b.clientContext(ctx), &oauth2.Token{
		AccessToken:  prev.AccessToken,
		RefreshToken: prev.RefreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := src.Token()
	if err != nil {
		return domainauth.Session{}, mapTokenError(err)
	}
	return b.sessionFromToken(ctx, tok, prev.User)
}

// registerRequest is the body posted to the registration endpoint.
type registerRequest struct {
	ClientID     string         `json:"client_id"`
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	RedirectTo   string         `json:"redirect_to,omitempty"`
}

// tokenResponse is the token payload returned by registration.
type tokenResponse struct {
	AccessToken  string         `json:"access_token"`
	TokenType    string         `json:"token_type"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresIn    int64          `json:"expires_in"`
	IDToken      string         `json:"id_token"`
	User         map[string]any `json:"user"`
}

// errorResponse covers the error shapes authorization servers commonly return.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
}

// Register creates an account. A response without an access token means the
// account awaits confirmation and yields a nil session.
func (b *Backend) Register(ctx context.Context, in ports.RegisterInput) (*domainauth.Session, error) {
	if b.registerURL == "" {
		return nil, errors.New("registration endpoint is not configured")
	}

	body, err := json.Marshal(registerRequest{
		ClientID:     b.config.ClientID,
		Email:        in.Email,
		Password:     in.Password,
		CustomFields: in.Metadata,
		RedirectTo:   in.RedirectTo,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.registerURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if b.config.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(b.config.ClientID), url.QueryEscape(b.config.ClientSecret))
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "registration request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, registerError(resp)
	}

	var tr tokenResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&tr); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return nil, fmt.Errorf("decode register response: %w", decodeErr)
	}
	if tr.AccessToken == "" {
		return nil, nil
	}

	tok := (&oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}).WithExtra(map[string]any{"user": tr.User, "id_token": tr.IDToken})
	if tr.ExpiresIn > 0 {
		tok.Expiry = b.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	sess, err := b.sessionFromToken(ctx, tok, nil)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Revoke invalidates the session's refresh token (RFC 7009). Servers without a
// revocation endpoint are treated as having nothing to revoke.
func (b *Backend) Revoke(ctx context.Context, sess domainauth.Session) error {
	if b.revocationURL == "" {
		return nil
	}

	token, hint := sess.RefreshToken, "refresh_token"
	if token == "" {
		token, hint = sess.AccessToken, "access_token"
	}
	if token == "" {
		return nil
	}

	form := url.Values{"token": {token}, "token_type_hint": {hint}}
	if b.config.ClientSecret == "" {
		form.Set("client_id", b.config.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if b.config.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(b.config.ClientID), url.QueryEscape(b.config.ClientSecret))
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "revocation request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revocation endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (b *Backend) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

// sessionFromToken builds a Session from a token response. fallback is used
// when the response identifies no user (typical for refresh responses).
func (b *Backend) sessionFromToken(ctx context.Context, tok *oauth2.Token, fallback *domainauth.User) (domainauth.Session, error) {
	doc, err := b.userDocument(ctx, tok)
	if err != nil {
		return domainauth.Session{}, err
	}

	sess := domainauth.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresAt:    tok.Expiry,
	}

	accessClaims := parseUnverified(tok.AccessToken)
	if sess.ExpiresAt.IsZero() {
		if exp, expErr := accessClaims.GetExpirationTime(); expErr == nil && exp != nil {
			sess.ExpiresAt = exp.Time
		} else {
			sess.ExpiresAt = b.now().Add(defaultTokenLifetime)
		}
	}

	if user := b.userFromDocument(doc, accessClaims); user != nil {
		sess.User = user
	} else {
		sess.User = fallback
	}
	return sess, nil
}

// userDocument picks the richest available description of the user: the
// token response's user object, a verified ID token, or the userinfo endpoint.
func (b *Backend) userDocument(ctx context.Context, tok *oauth2.Token) (map[string]any, error) {
	if u, ok := tok.Extra("user").(map[string]any); ok && len(u) > 0 {
		return u, nil
	}

	if rawID, ok := tok.Extra("id_token").(string); ok && rawID != "" {
		idTok, err := b.verifier.Verify(b.clientContext(ctx), rawID)
		if err != nil {
			return nil, fmt.Errorf("verify id_token: %w", err)
		}
		var claims map[string]any
		if err := idTok.Claims(&claims); err != nil {
			return nil, fmt.Errorf("parse id_token claims: %w", err)
		}
		return claims, nil
	}

	if b.oidcProvider.UserInfoEndpoint() != "" && hasScope(b.config.Scopes, "openid") {
		ui, err := b.oidcProvider.UserInfo(b.clientContext(ctx), oauth2.StaticTokenSource(tok))
		if err != nil {
			return nil, fmt.Errorf("fetch user info: %w", err)
		}
		var claims map[string]any
		if err := ui.Claims(&claims); err != nil {
			return nil, fmt.Errorf("decode user info: %w", err)
		}
		return claims, nil
	}
	return nil, nil
}

func (b *Backend) userFromDocument(doc map[string]any, accessClaims jwt.MapClaims) *domainauth.User {
	id := firstNonEmpty(stringField(doc, "id"), stringField(doc, "sub"), stringField(accessClaims, "sub"))
	if id == "" {
		return nil
	}

	user := &domainauth.User{
		ID:    id,
		Email: firstNonEmpty(stringField(doc, "email"), stringField(accessClaims, "email")),
	}
	if created := stringField(doc, "created_at"); created != "" {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			user.CreatedAt = t
		}
	}

	source := any(doc)
	if doc == nil {
		source = map[string]any(accessClaims)
	}
	if meta, err := jmespath.Search(b.metadataQuery, source); err == nil {
		if m, ok := meta.(map[string]any); ok {
			user.Metadata = m
		}
	}
	return user
}

// parseUnverified reads claims from a JWT access token without verifying it.
// Non-JWT tokens yield empty claims.
func parseUnverified(raw string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if strings.Count(raw, ".") != 2 {
		return claims
	}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return jwt.MapClaims{}
	}
	return claims
}

// mapTokenError classifies token endpoint failures.
func mapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch {
		case re.ErrorCode == "invalid_grant":
			return apperrors.InvalidCredentials(err)
		case re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError:
			return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "identity provider unavailable")
		default:
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "token request rejected")
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "Request timed out. Please try again.")
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "identity provider unreachable")
	}
	return err
}

func registerError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er errorResponse
	_ = json.Unmarshal(raw, &er)
	cause := fmt.Errorf("register: status %d: %s", resp.StatusCode,
		firstNonEmpty(er.ErrorDescription, er.Message, er.Error, strings.TrimSpace(string(raw))))

	switch {
	case resp.StatusCode == http.StatusConflict:
		return apperrors.AlreadyRegistered(cause)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		msg := firstNonEmpty(er.ErrorDescription, er.Message, "Registration was rejected")
		return apperrors.Wrap(cause, apperrors.ErrCodeValidation, msg)
	case resp.StatusCode >= http.StatusInternalServerError:
		return apperrors.Wrap(cause, apperrors.ErrCodeUnavailable, "identity provider unavailable")
	default:
		return apperrors.Wrap(cause, apperrors.ErrCodeInternal, "registration failed")
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func hasScope(scopes []string, want string) bool {
	for _, sc := range scopes {
		if sc == want {
			return true
		}
	}
	return false
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
