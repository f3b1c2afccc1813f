package param

import (
	"fmt"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// Registry interns every optimization variable a residual touches. It
// classifies each one (local vs remote, kind) and owns the canonical
// mutable storage buffer the inner solver reads and writes — callers
// should key long-lived structures on Parameter.ID, not on the buffer
// address, per the design note in spec.md §9.
//
// Metadata (kind, size, owner) lives in an immutable radix tree so
// Iterate returns a stable, id-sorted snapshot even while concurrent
// registrations are in flight; the mutable float buffers live in a
// plain map guarded by the same mutex, since only the estimator thread
// ever writes them (spec.md §5).
type Registry struct {
	selfID int64

	mu      sync.RWMutex
	tree    *iradix.Tree
	storage map[ID][]float64
}

// NewRegistry creates an empty registry for the given local agent id.
func NewRegistry(selfID int64) *Registry {
	return &Registry{
		selfID:  selfID,
		tree:    iradix.New(),
		storage: make(map[ID][]float64),
	}
}

// Register interns p. It is idempotent: registering the same id twice
// is a no-op as long as kind and size agree with the first
// registration; a mismatched re-registration is a programmer-contract
// violation and panics, per spec.md §7's parameter-missing/fatal
// category.
func (r *Registry) Register(p Parameter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := []byte(p.ID)
	if existingVal, ok := r.tree.Get(key); ok {
		existing := existingVal.(Parameter)
		if existing.Kind != p.Kind || existing.Size != p.Size || existing.TangentSize != p.TangentSize {
			panic(fmt.Sprintf("param: re-registration of %q changes kind/size (had %+v, got %+v)", p.ID, existing, p))
		}
		return
	}

	tree, _, _ := r.tree.Insert(key, p)
	r.tree = tree
	r.storage[p.ID] = make([]float64, p.Size)
}

// Iterate returns every registered parameter, sorted by id.
func (r *Registry) Iterate() []Parameter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Parameter, 0, r.tree.Len())
	r.tree.Root().Walk(func(_ []byte, v interface{}) bool {
		out = append(out, v.(Parameter))
		return false
	})
	return out
}

// Get returns the registered parameter for id, if any.
func (r *Registry) Get(id ID) (Parameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.tree.Get([]byte(id))
	if !ok {
		return Parameter{}, false
	}
	return v.(Parameter), true
}

// IsRemote reports whether id's solver-owner is not the local agent.
// Panics if id was never registered — a caller referencing an unknown
// parameter is the parameter-missing fatal condition from spec.md §7.
func (r *Registry) IsRemote(id ID) bool {
	p, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("param: is-remote query on unregistered parameter %q", id))
	}
	return p.Owner != r.selfID
}

// Owner returns id's solver-owner. Panics on an unregistered id, same
// as IsRemote.
func (r *Registry) Owner(id ID) int64 {
	p, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("param: owner query on unregistered parameter %q", id))
	}
	return p.Owner
}

// SelfID returns the local agent id this registry was constructed with.
func (r *Registry) SelfID() int64 { return r.selfID }

// Buffer returns the canonical mutable scalar storage for id.
func (r *Registry) Buffer(id ID) ([]float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	buf, ok := r.storage[id]
	return buf, ok
}

// SetBuffer overwrites id's canonical storage. len(vals) must equal the
// parameter's registered size.
func (r *Registry) SetBuffer(id ID, vals []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.tree.Get([]byte(id))
	if !ok {
		panic(fmt.Sprintf("param: set-buffer on unregistered parameter %q", id))
	}
	p := v.(Parameter)
	if len(vals) != p.Size {
		panic(fmt.Sprintf("param: set-buffer size mismatch for %q: want %d, got %d", id, p.Size, len(vals)))
	}
	buf := make([]float64, len(vals))
	copy(buf, vals)
	r.storage[id] = buf
}

// Len reports the number of registered parameters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree.Len()
}
