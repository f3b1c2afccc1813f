package consensus

import (
	"github.com/dronefleet/vioconsensus/pkg/dual"
	"github.com/dronefleet/vioconsensus/pkg/param"
)

// EnsureAllRemoteDuals implements outer-iteration step 2 from
// spec.md §2's data flow: scan the registry and lazily create a
// dual-state entry, seeded from the current primal, for every remote
// parameter that doesn't have one yet. Internal parameters
// (param.InternalOwner) have no owning peer and get no dual.
func EnsureAllRemoteDuals(store *dual.Store, registry *param.Registry) {
	for _, p := range registry.Iterate() {
		if p.Owner == registry.SelfID() || p.Owner == param.InternalOwner {
			continue
		}
		if store.Has(p.ID, p.Owner) {
			continue
		}
		store.Ensure(p.ID, p.Owner)
	}
}
