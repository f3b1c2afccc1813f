package sync

import (
	lru "github.com/hashicorp/golang-lru"
)

// dedupCache recognizes broadcasts already applied, replacing the
// teacher's hand-rolled doubly-linked-list dedup cache with the LRU
// implementation the pack already depends on transitively through
// memberlist.
type dedupCache struct {
	cache *lru.Cache
}

func newDedupCache(size int) *dedupCache {
	c, err := lru.New(size)
	if err != nil {
		// Only returns an error for a non-positive size, which callers
		// never pass; a bad build-time constant is a programmer error.
		panic(err)
	}
	return &dedupCache{cache: c}
}

// SeenBefore reports whether this message id has already been applied,
// and marks it seen either way.
func (d *dedupCache) SeenBefore(id string) bool {
	if d.cache.Contains(id) {
		return true
	}
	d.cache.Add(id, struct{}{})
	return false
}
