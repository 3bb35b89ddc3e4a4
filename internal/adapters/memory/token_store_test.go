package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellsbank/bellsbank/internal/ports"
	"github.com/bellsbank/bellsbank/internal/testutil"
)

func TestTokenStore_RoundTrip(t *testing.T) {
	store := NewTokenStore(0)
	ctx := context.Background()

	_, err := store.Load(ctx, "auth")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	sess := testutil.NewSession().Build()
	require.NoError(t, store.Save(ctx, "auth", sess))

	got, err := store.Load(ctx, "auth")
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	require.NoError(t, store.Delete(ctx, "auth"))
	_, err = store.Load(ctx, "auth")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestTokenStore_RejectsEmptyKey(t *testing.T) {
	store := NewTokenStore(time.Hour)
	assert.Error(t, store.Save(context.Background(), "", testutil.NewSession().Build()))
}

func TestTokenStore_Expires(t *testing.T) {
	store := NewTokenStore(10 * time.Millisecond)
	require.NoError(t, store.Save(context.Background(), "auth", testutil.NewSession().Build()))

	require.Eventually(t, func() bool {
		_, err := store.Load(context.Background(), "auth")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}
