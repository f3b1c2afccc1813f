// Package dual implements the Dual-State Store from spec.md §4.2: for
// every remote parameter referenced locally, it keeps a per-peer local
// dual estimate and a per-peer received remote dual estimate.
package dual

import (
	"sync"

	"github.com/dronefleet/vioconsensus/pkg/param"
)

// Key identifies one (peer, parameter) dual-state slot. A flat mapping
// keyed this way is equivalent to the doubly-nested peer->parameter
// map spec.md §9 calls a lookup convenience, not a requirement.
type Key struct {
	Peer  int64
	Param param.ID
}

// Pair is one snapshot returned by Store.Pairs.
type Pair struct {
	Peer   int64
	Param  param.ID
	Local  []float64
	Remote []float64
}

type entry struct {
	mu     sync.RWMutex
	local  []float64
	remote []float64
}

// Store owns local_dual/remote_dual for every (peer, parameter) pair
// currently tracked. remote_dual is only ever written by the
// coordinator from received messages; local_dual is only ever written
// by the ARock update step (spec.md §4.2) — those are disjoint writer
// sets, so a short per-entry mutex is sufficient without a global lock
// on the hot path.
type Store struct {
	registry *param.Registry

	mu      sync.RWMutex
	entries map[Key]*entry
}

// NewStore creates an empty dual-state store backed by registry, whose
// current primal values seed newly-ensured entries.
func NewStore(registry *param.Registry) *Store {
	return &Store{
		registry: registry,
		entries:  make(map[Key]*entry),
	}
}

func (s *Store) getOrCreate(k Key) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[k]
	s.mu.RUnlock()
	if ok {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[k]; ok {
		return e, false
	}
	e = &entry{}
	s.entries[k] = e
	return e, true
}

// Ensure idempotently creates the dual state for (paramID, peer),
// initializing both local and remote duals to the parameter's current
// primal value if this is the first reference. Returns false if the
// parameter is not registered (a caller bug — the factor builder must
// only ever call Ensure for parameters already in the registry).
func (s *Store) Ensure(paramID param.ID, peer int64) bool {
	k := Key{Peer: peer, Param: paramID}
	e, created := s.getOrCreate(k)
	if !created {
		return true
	}

	buf, ok := s.registry.Buffer(paramID)
	if !ok {
		s.mu.Lock()
		delete(s.entries, k)
		s.mu.Unlock()
		return false
	}

	init := make([]float64, len(buf))
	copy(init, buf)
	initLocal := make([]float64, len(buf))
	copy(initLocal, buf)

	e.mu.Lock()
	e.remote = init
	e.local = initLocal
	e.mu.Unlock()
	return true
}

// EnsureWithRemote is like Ensure but seeds remote_dual from an
// already-known value instead of the current primal — the lazy dual
// creation path of spec.md §8 scenario 6, used when a peer's broadcast
// referencing a not-yet-registered parameter arrives before the local
// registration does.
func (s *Store) EnsureWithRemote(paramID param.ID, peer int64, remote []float64) bool {
	k := Key{Peer: peer, Param: paramID}
	e, created := s.getOrCreate(k)

	buf, ok := s.registry.Buffer(paramID)
	if !ok {
		if created {
			s.mu.Lock()
			delete(s.entries, k)
			s.mu.Unlock()
		}
		return false
	}

	if !created {
		s.SetRemote(paramID, peer, remote)
		return true
	}

	initLocal := make([]float64, len(buf))
	copy(initLocal, buf)
	r := make([]float64, len(remote))
	copy(r, remote)

	e.mu.Lock()
	e.local = initLocal
	e.remote = r
	e.mu.Unlock()
	return true
}

// SetRemote overwrites remote_dual for (paramID, peer). Only the
// coordinator's reception path should call this.
func (s *Store) SetRemote(paramID param.ID, peer int64, value []float64) {
	e, _ := s.getOrCreate(Key{Peer: peer, Param: paramID})
	v := make([]float64, len(value))
	copy(v, value)
	e.mu.Lock()
	e.remote = v
	e.mu.Unlock()
}

// SetLocal overwrites local_dual for (paramID, peer). Only the ARock
// update step should call this.
func (s *Store) SetLocal(paramID param.ID, peer int64, value []float64) {
	e, _ := s.getOrCreate(Key{Peer: peer, Param: paramID})
	v := make([]float64, len(value))
	copy(v, value)
	e.mu.Lock()
	e.local = v
	e.mu.Unlock()
}

// GetLocal returns a copy of local_dual for (paramID, peer).
func (s *Store) GetLocal(paramID param.ID, peer int64) ([]float64, bool) {
	s.mu.RLock()
	e, ok := s.entries[Key{Peer: peer, Param: paramID}]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.local == nil {
		return nil, false
	}
	out := make([]float64, len(e.local))
	copy(out, e.local)
	return out, true
}

// GetRemote returns a copy of remote_dual for (paramID, peer).
func (s *Store) GetRemote(paramID param.ID, peer int64) ([]float64, bool) {
	s.mu.RLock()
	e, ok := s.entries[Key{Peer: peer, Param: paramID}]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.remote == nil {
		return nil, false
	}
	out := make([]float64, len(e.remote))
	copy(out, e.remote)
	return out, true
}

// Has reports whether a dual state exists for (paramID, peer).
func (s *Store) Has(paramID param.ID, peer int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[Key{Peer: peer, Param: paramID}]
	return ok
}

// Drop removes the dual state for (paramID, peer), e.g. once the
// parameter no longer appears in any local residual owned by peer.
func (s *Store) Drop(paramID param.ID, peer int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, Key{Peer: peer, Param: paramID})
}

// Pairs returns a snapshot of every (peer, parameter, local, remote)
// tuple currently tracked.
func (s *Store) Pairs() []Pair {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.entries))
	ents := make([]*entry, 0, len(s.entries))
	for k, e := range s.entries {
		keys = append(keys, k)
		ents = append(ents, e)
	}
	s.mu.RUnlock()

	out := make([]Pair, 0, len(keys))
	for i, k := range keys {
		e := ents[i]
		e.mu.RLock()
		local := append([]float64(nil), e.local...)
		remote := append([]float64(nil), e.remote...)
		e.mu.RUnlock()
		out = append(out, Pair{Peer: k.Peer, Param: k.Param, Local: local, Remote: remote})
	}
	return out
}
