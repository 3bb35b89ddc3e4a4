package service

import (
	"context"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	"github.com/bellsbank/bellsbank/internal/ports"
)

// attachedProvider is an identity provider with a live change subscription.
// The current-session lookup is only reachable through it, so the store cannot
// read the session before it is receiving change events.
type attachedProvider struct {
	provider ports.IdentityProvider
	sub      ports.Subscription
}

// attach subscribes to provider's change stream.
func attach(provider ports.IdentityProvider) *attachedProvider {
	return &attachedProvider{
		provider: provider,
		sub:      provider.Subscribe(),
	}
}

func (a *attachedProvider) events() <-chan domainauth.Event {
	return a.sub.Events()
}

// lookup reads the provider's current session.
func (a *attachedProvider) lookup(ctx context.Context) (*domainauth.Session, error) {
	return a.provider.CurrentSession(ctx)
}

// detach ends the subscription; the events channel is closed afterwards.
func (a *attachedProvider) detach() {
	a.sub.Unsubscribe()
}
