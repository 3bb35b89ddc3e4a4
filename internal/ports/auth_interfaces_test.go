package ports_test

import (
	"testing"

	"github.com/bellsbank/bellsbank/internal/adapters/devauth"
	"github.com/bellsbank/bellsbank/internal/adapters/identity"
	"github.com/bellsbank/bellsbank/internal/adapters/memory"
	"github.com/bellsbank/bellsbank/internal/adapters/oidc"
	redisadapter "github.com/bellsbank/bellsbank/internal/adapters/redis"
	"github.com/bellsbank/bellsbank/internal/adapters/visibility"
	"github.com/bellsbank/bellsbank/internal/data"
	"github.com/bellsbank/bellsbank/internal/mocks"
	authmocks "github.com/bellsbank/bellsbank/internal/mocks/auth"
	"github.com/bellsbank/bellsbank/internal/ports"
)

// This test only verifies that adapters and mocks conform to the ports at compile time.
func TestAdaptersImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityProvider = (*identity.Client)(nil)
	var _ ports.SessionRefresher = (*identity.Client)(nil)
	var _ ports.TokenBackend = (*oidc.Backend)(nil)
	var _ ports.TokenBackend = (*devauth.Backend)(nil)
	var _ ports.SessionPersistence = (*memory.TokenStore)(nil)
	var _ ports.SessionPersistence = (*redisadapter.TokenStore)(nil)
	var _ ports.ProfileRepository = (*data.ProfileRepo)(nil)
	var _ ports.ProfileWriter = (*data.ProfileRepo)(nil)
	var _ ports.ProfileRepository = (*memory.ProfileRepo)(nil)
	var _ ports.ProfileWriter = (*memory.ProfileRepo)(nil)
	var _ ports.VisibilitySource = (*visibility.Manual)(nil)
	var _ ports.VisibilitySource = (*visibility.Signal)(nil)

	var _ ports.TokenBackend = (*mocks.MockTokenBackend)(nil)
	var _ ports.ProfileRepository = (*mocks.MockProfileRepository)(nil)
	var _ ports.IdentityProvider = (*authmocks.FakeIdentityProvider)(nil)
}
