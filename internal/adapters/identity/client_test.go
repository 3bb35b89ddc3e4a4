package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bellsbank/bellsbank/internal/adapters/memory"
	"github.com/bellsbank/bellsbank/internal/data"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/mocks"
	"github.com/bellsbank/bellsbank/internal/ports"
	"github.com/bellsbank/bellsbank/internal/testutil"
)

type clientFixture struct {
	client  *Client
	backend *mocks.MockTokenBackend
	store   *memory.TokenStore
	clock   *data.FixedTimeProvider
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	backend := mocks.NewMockTokenBackend(ctrl)
	store := memory.NewTokenStore(time.Hour)
	clock := data.NewFixedTimeProvider(testutil.TestTime())

	client, err := NewClient(ClientOptions{Backend: backend, Store: store, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return &clientFixture{client: client, backend: backend, store: store, clock: clock}
}

func nextEvent(t *testing.T, sub ports.Subscription) domainauth.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return domainauth.Event{}
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientOptions{})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	_, err = NewClient(ClientOptions{Backend: mocks.NewMockTokenBackend(ctrl)})
	require.Error(t, err)
}

func TestClient_SignInPersistsAndPublishes(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()
	sess := testutil.NewSession().Build()

	f.backend.EXPECT().PasswordLogin(gomock.Any(), "ada@example.com", "pw").Return(sess, nil)

	sub := f.client.Subscribe()
	defer sub.Unsubscribe()

	got, err := f.client.SignInWithPassword(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, got.AccessToken)

	ev := nextEvent(t, sub)
	assert.Equal(t, domainauth.EventSignedIn, ev.Kind)
	assert.Equal(t, sess.UserID(), ev.Session.UserID())

	current, err := f.client.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, sess.AccessToken, current.AccessToken)
}

func TestClient_SignInFailureLeavesNothing(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	f.backend.EXPECT().PasswordLogin(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domainauth.Session{}, apperrors.InvalidCredentials(nil))

	_, err := f.client.SignInWithPassword(ctx, "ada@example.com", "bad")
	assert.True(t, apperrors.IsInvalidCredentials(err))

	current, err := f.client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClient_SignUp(t *testing.T) {
	t.Run("session issued", func(t *testing.T) {
		f := newClientFixture(t)
		sess := testutil.NewSession().BuildPtr()
		meta := domainauth.SignUpMetadata{FullName: "Ada Obi", MatricNumber: "BU/21/0001", PhoneNumber: "080"}

		f.backend.EXPECT().Register(gomock.Any(), ports.RegisterInput{
			Email:      "ada@example.com",
			Password:   "pw",
			Metadata:   meta.Map(),
			RedirectTo: "https://bank.example/",
		}).Return(sess, nil)

		got, err := f.client.SignUp(context.Background(), ports.SignUpInput{
			Email: "ada@example.com", Password: "pw", Metadata: meta, RedirectTo: "https://bank.example/",
		})
		require.NoError(t, err)
		require.NotNil(t, got)

		stored, err := f.store.Load(context.Background(), DefaultStorageKey)
		require.NoError(t, err)
		assert.Equal(t, sess.AccessToken, stored.AccessToken)
	})

	t.Run("awaiting confirmation", func(t *testing.T) {
		f := newClientFixture(t)
		f.backend.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, nil)

		got, err := f.client.SignUp(context.Background(), ports.SignUpInput{Email: "a@example.com", Password: "pw"})
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = f.store.Load(context.Background(), DefaultStorageKey)
		assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	})
}

func TestClient_SignOutAlwaysClears(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, DefaultStorageKey, testutil.NewSession().Build()))

	f.backend.EXPECT().Revoke(gomock.Any(), gomock.Any()).Return(errors.New("revocation endpoint down"))

	sub := f.client.Subscribe()
	defer sub.Unsubscribe()

	err := f.client.SignOut(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revocation endpoint down")

	assert.Equal(t, domainauth.EventSignedOut, nextEvent(t, sub).Kind)
	current, err := f.client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClient_SignOutWithoutSession(t *testing.T) {
	f := newClientFixture(t)
	require.NoError(t, f.client.SignOut(context.Background()))
}

func TestClient_CurrentSessionRenewsExpiredBundle(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	expired := testutil.NewSession().ExpiresAt(f.clock.Now().Add(-time.Minute)).Build()
	require.NoError(t, f.store.Save(ctx, DefaultStorageKey, expired))

	renewed := testutil.NewSession().WithoutUser().WithTokens("new-access", "new-refresh").
		ExpiresAt(f.clock.Now().Add(time.Hour)).Build()
	f.backend.EXPECT().Refresh(gomock.Any(), expired).Return(renewed, nil)

	got, err := f.client.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new-access", got.AccessToken)
	assert.Equal(t, expired.UserID(), got.UserID(), "user carries over when the refresh response omits it")
}

func TestClient_CurrentSessionDiscardsUnrenewableBundle(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	expired := testutil.NewSession().ExpiresAt(f.clock.Now().Add(-time.Minute)).Build()
	require.NoError(t, f.store.Save(ctx, DefaultStorageKey, expired))

	f.backend.EXPECT().Refresh(gomock.Any(), gomock.Any()).Return(domainauth.Session{}, errors.New("network down"))

	got, err := f.client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = f.store.Load(ctx, DefaultStorageKey)
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestClient_RefreshWithoutSession(t *testing.T) {
	f := newClientFixture(t)
	_, err := f.client.RefreshSession(context.Background())
	assert.True(t, apperrors.IsNoSession(err))
}

func TestClient_RefreshRejectedSignsOut(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, DefaultStorageKey, testutil.NewSession().Build()))

	f.backend.EXPECT().Refresh(gomock.Any(), gomock.Any()).Return(domainauth.Session{}, apperrors.InvalidCredentials(nil))

	sub := f.client.Subscribe()
	defer sub.Unsubscribe()

	_, err := f.client.RefreshSession(ctx)
	require.Error(t, err)
	assert.Equal(t, domainauth.EventSignedOut, nextEvent(t, sub).Kind)

	_, err = f.store.Load(ctx, DefaultStorageKey)
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestClient_ConcurrentRefreshSharesExchange(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, DefaultStorageKey, testutil.NewSession().Build()))

	release := make(chan struct{})
	f.backend.EXPECT().Refresh(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domainauth.Session) (domainauth.Session, error) {
			<-release
			return testutil.NewSession().WithTokens("shared", "r2").Build(), nil
		}).Times(1)

	var wg sync.WaitGroup
	results := make([]*domainauth.Session, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.client.RefreshSession(ctx)
			assert.NoError(t, err)
			results[i] = s
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, s := range results {
		require.NotNil(t, s)
		assert.Equal(t, "shared", s.AccessToken)
	}
}

func TestClient_AutoRefreshLoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockTokenBackend(ctrl)
	store := memory.NewTokenStore(time.Hour)
	clock := data.NewFixedTimeProvider(testutil.TestTime())

	expiring := testutil.NewSession().ExpiresAt(clock.Now().Add(30 * time.Second)).Build()
	require.NoError(t, store.Save(context.Background(), DefaultStorageKey, expiring))

	refreshed := make(chan struct{}, 1)
	backend.EXPECT().Refresh(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domainauth.Session) (domainauth.Session, error) {
			select {
			case refreshed <- struct{}{}:
			default:
			}
			return testutil.NewSession().ExpiresAt(clock.Now().Add(time.Hour)).Build(), nil
		}).MinTimes(1)

	client, err := NewClient(ClientOptions{
		Backend:         backend,
		Store:           store,
		Clock:           clock,
		AutoRefresh:     true,
		AutoRefreshTick: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("auto refresh did not run")
	}

	client.StopAutoRefresh()
	client.StopAutoRefresh()
	client.Close()
}

func TestClient_StopAutoRefreshPreventsRenewal(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockTokenBackend(ctrl)
	store := memory.NewTokenStore(time.Hour)
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	require.NoError(t, store.Save(context.Background(), DefaultStorageKey,
		testutil.NewSession().ExpiresAt(clock.Now()).Build()))

	client, err := NewClient(ClientOptions{
		Backend:         backend,
		Store:           store,
		Clock:           clock,
		AutoRefreshTick: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	defer client.Close()

	client.StartAutoRefresh()
	client.StopAutoRefresh()

	// No Refresh expectation is registered; any call fails the test.
	time.Sleep(30 * time.Millisecond)
}
