package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellsbank/bellsbank/internal/data"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/testutil"
)

func TestProfileRepo_CreateAndFind(t *testing.T) {
	repo := NewProfileRepo(data.NewFixedTimeProvider(testutil.TestTime()))
	ctx := context.Background()

	missing, err := repo.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := repo.Create(ctx, domainauth.CreateProfileRequest{
		UserID: "user-1", FullName: "Ada Obi", Email: "ada@example.com", MatricNumber: "BU/21/0001",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, testutil.TestTime(), created.CreatedAt)

	got, err := repo.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *created, *got)

	_, err = repo.Create(ctx, domainauth.CreateProfileRequest{UserID: "user-1"})
	assert.True(t, apperrors.IsConflict(err))

	_, err = repo.Create(ctx, domainauth.CreateProfileRequest{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestProfileRepo_HonoursContext(t *testing.T) {
	repo := NewProfileRepo(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.FindByUserID(ctx, "user-1")
	require.ErrorIs(t, err, context.Canceled)
}
