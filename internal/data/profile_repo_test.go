package data

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/testutil"
)

func TestProfileRepo_CreateAndFind(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	clock := NewFixedTimeProvider(testutil.TestTime())
	repo := NewProfileRepoWithTimeProvider(db, clock)

	userID := fmt.Sprintf("user-%d", time.Now().UnixNano())
	phone := "08012345678"
	created, err := repo.Create(ctx, domainauth.CreateProfileRequest{
		UserID:       userID,
		FullName:     "Ada Obi",
		Email:        "ada@example.com",
		MatricNumber: "BU/21/0001",
		PhoneNumber:  &phone,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Zero(t, created.AccountBalance)
	assert.True(t, created.CreatedAt.Equal(testutil.TestTime()))

	got, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Ada Obi", got.FullName)
	require.NotNil(t, got.PhoneNumber)
	assert.Equal(t, phone, *got.PhoneNumber)

	_, err = repo.Create(ctx, domainauth.CreateProfileRequest{UserID: userID, Email: "ada@example.com"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestProfileRepo_FindMissing(t *testing.T) {
	db := testutil.NewTestDB(t)

	got, err := NewProfileRepo(db).FindByUserID(context.Background(), "no-such-user")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProfileRepo_CreateValidation(t *testing.T) {
	repo := NewProfileRepo(nil)

	_, err := repo.Create(context.Background(), domainauth.CreateProfileRequest{Email: "a@example.com"})
	require.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "user_id", apperrors.GetField(err))

	_, err = repo.Create(context.Background(), domainauth.CreateProfileRequest{UserID: "u"})
	require.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "email", apperrors.GetField(err))
}
