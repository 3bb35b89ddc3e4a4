package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bellsbank/bellsbank/internal/data/pgxutil"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/ports"
)

const profileColumns = `id, user_id, full_name, email, matric_number, phone_number, account_balance, created_at, updated_at`

const (
	profileFindByUserIDQuery = `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	profileInsertQuery       = `
		INSERT INTO profiles (user_id, full_name, email, matric_number, phone_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + profileColumns
)

var _ ports.ProfileRepository = (*ProfileRepo)(nil)

// ProfileRepo provides database operations for profiles.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a new ProfileRepo with real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a new ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

// FindByUserID returns the profile of userID, or (nil, nil) when there is none.
func (r *ProfileRepo) FindByUserID(ctx context.Context, userID string) (*domainauth.Profile, error) {
	profile, err := pgxutil.CollectOne[domainauth.Profile](ctx, r.DB, profileFindByUserIDQuery, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by user ID: %w", apperrors.MapDBError(err))
	}
	return &profile, nil
}

// Create inserts the profile of a newly registered user.
func (r *ProfileRepo) Create(ctx context.Context, req domainauth.CreateProfileRequest) (*domainauth.Profile, error) {
	if req.UserID == "" {
		return nil, apperrors.ValidationField("user_id", "user_id is required")
	}
	if req.Email == "" {
		return nil, apperrors.ValidationField("email", "email is required")
	}

	now := r.timeProvider.Now().UTC()
	profile, err := pgxutil.CollectOne[domainauth.Profile](ctx, r.DB, profileInsertQuery,
		req.UserID, req.FullName, req.Email, req.MatricNumber, req.PhoneNumber, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", apperrors.MapDBError(err))
	}
	return &profile, nil
}
