package core

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/vovakirdan/wireroom/internal/store"
)

// IdentityLister lists known identities in creation order.
type IdentityLister interface {
	List(ctx context.Context) ([]*store.Identity, error)
}

// Presence derives online status from the identity list and the registry.
// It holds no state of its own.
type Presence struct {
	identities IdentityLister
	registry   *Registry
}

// NewPresence builds a presence view.
func NewPresence(identities IdentityLister, registry *Registry) *Presence {
	return &Presence{identities: identities, registry: registry}
}

// Snapshot returns every known identity with is_online set from the registry.
func (p *Presence) Snapshot(ctx context.Context) ([]PresenceEntry, error) {
	known, err := p.identities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	active := lo.Keyify(p.registry.ActiveIdentities())
	return lo.Map(known, func(id *store.Identity, _ int) PresenceEntry {
		_, online := active[id.ID]
		return *identityView(id, online)
	}), nil
}
