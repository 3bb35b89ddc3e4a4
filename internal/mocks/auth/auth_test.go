package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/ports"
)

func TestFakeIdentityProvider_SignInEmitsEvent(t *testing.T) {
	p := NewFakeIdentityProvider(map[string]string{"ada@example.com": "secret"})
	sub := p.Subscribe()
	defer sub.Unsubscribe()

	sess, err := p.SignInWithPassword(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, sess)

	ev := <-sub.Events()
	assert.Equal(t, domainauth.EventSignedIn, ev.Kind)
	assert.Equal(t, sess.UserID(), ev.Session.UserID())

	_, err = p.SignInWithPassword(context.Background(), "ada@example.com", "wrong")
	assert.True(t, apperrors.IsInvalidCredentials(err))
	assert.EqualValues(t, 2, p.SignInCalls.Load())
}

func TestFakeIdentityProvider_RecordsSubscriptionAtLookup(t *testing.T) {
	p := NewFakeIdentityProvider(nil)

	_, _ = p.CurrentSession(context.Background())
	sub := p.Subscribe()
	_, _ = p.CurrentSession(context.Background())
	sub.Unsubscribe()

	assert.Equal(t, []bool{false, true}, p.LookupsWithSubscription())
	assert.Zero(t, p.Subscribers())
}

func TestFakeIdentityProvider_SignUpRejectsExisting(t *testing.T) {
	p := NewFakeIdentityProvider(map[string]string{"ada@example.com": "secret"})

	_, err := p.SignUp(context.Background(), ports.SignUpInput{Email: "ada@example.com", Password: "x"})
	assert.True(t, apperrors.IsAlreadyRegistered(err))
}

func TestMemoryProfileRepo(t *testing.T) {
	repo := NewMemoryProfileRepo()
	repo.Put(domainauth.Profile{ID: "p1", UserID: "u1", FullName: "Ada Obi"})

	got, err := repo.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Obi", got.FullName)

	missing, err := repo.FindByUserID(context.Background(), "u2")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, 2, repo.Calls())
}
