package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/bellsbank/bellsbank/internal/data"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	"github.com/bellsbank/bellsbank/internal/ports"
)

var (
	_ ports.ProfileRepository = (*ProfileRepo)(nil)
	_ ports.ProfileWriter     = (*ProfileRepo)(nil)
)

// ProfileRepo keeps profiles in process memory, keyed by user id. It stands in
// for the profiles table when the dev identity backend runs without PostgreSQL.
type ProfileRepo struct {
	cache *gocache.Cache
	clock data.TimeProvider
	mu    sync.Mutex
}

// NewProfileRepo creates an empty in-memory profile repository.
func NewProfileRepo(clock data.TimeProvider) *ProfileRepo {
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	return &ProfileRepo{
		cache: gocache.New(gocache.NoExpiration, 0),
		clock: clock,
	}
}

// FindByUserID returns (nil, nil) when the user has no profile.
func (r *ProfileRepo) FindByUserID(ctx context.Context, userID string) (*domainauth.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := r.cache.Get(userID)
	if !ok {
		return nil, nil
	}
	p := v.(domainauth.Profile)
	return &p, nil
}

// Create stores a new profile. A second profile for the same user is a conflict.
func (r *ProfileRepo) Create(ctx context.Context, req domainauth.CreateProfileRequest) (*domainauth.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, apperrors.ValidationField("user_id", "user_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	p := domainauth.Profile{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		FullName:     req.FullName,
		Email:        req.Email,
		MatricNumber: req.MatricNumber,
		PhoneNumber:  req.PhoneNumber,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.cache.Add(req.UserID, p, gocache.NoExpiration); err != nil {
		return nil, apperrors.Conflict("profile already exists")
	}
	return &p, nil
}
