package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellsbank/bellsbank/internal/ports"
	"github.com/bellsbank/bellsbank/internal/testutil"
)

func TestTokenStore_SaveAndLoad(t *testing.T) {
	_, client := testutil.NewTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client})
	ctx := context.Background()

	sess := testutil.NewSession().WithUser("u-1", "ada@example.com").Build()
	require.NoError(t, store.Save(ctx, "auth", sess))

	got, err := store.Load(ctx, "auth")
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, got.AccessToken)
	assert.Equal(t, sess.RefreshToken, got.RefreshToken)
	assert.Equal(t, "u-1", got.UserID())
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestTokenStore_LoadMissing(t *testing.T) {
	_, client := testutil.NewTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client})

	_, err := store.Load(context.Background(), "nothing-here")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	_, err = store.Load(context.Background(), "")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestTokenStore_KeepsExpiredAccessToken(t *testing.T) {
	_, client := testutil.NewTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client})
	ctx := context.Background()

	sess := testutil.NewSession().ExpiresAt(time.Now().Add(-time.Hour)).Build()
	require.NoError(t, store.Save(ctx, "auth", sess))

	got, err := store.Load(ctx, "auth")
	require.NoError(t, err)
	assert.Equal(t, sess.RefreshToken, got.RefreshToken)
}

func TestTokenStore_TTLAndPrefix(t *testing.T) {
	mr, client := testutil.NewTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client, Prefix: "test:", TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "auth", testutil.NewSession().Build()))
	assert.True(t, mr.Exists("test:auth"))
	assert.Equal(t, time.Minute, mr.TTL("test:auth"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Load(ctx, "auth")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestTokenStore_Delete(t *testing.T) {
	_, client := testutil.NewTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "auth", testutil.NewSession().Build()))
	require.NoError(t, store.Delete(ctx, "auth"))
	require.NoError(t, store.Delete(ctx, "auth"))
	require.NoError(t, store.Delete(ctx, ""))

	_, err := store.Load(ctx, "auth")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestTokenStore_CorruptPayload(t *testing.T) {
	mr, client := testutil.NewTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client})

	require.NoError(t, mr.Set(defaultKeyPrefix+"auth", "{not json"))
	_, err := store.Load(context.Background(), "auth")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestTokenStore_Unavailable(t *testing.T) {
	mr, client := testutil.NewTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client})
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := store.Load(ctx, "auth")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrSessionNotFound)
}
