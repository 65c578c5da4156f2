// Package objecttable implements the Hash -> driver-handle mapping shared by
// every resource tag except AppInfo.
//
// Entries are inserted once by the thread that successfully creates the
// object and are never mutated thereafter. A missing entry means "not yet
// created" or "creation failed" — callers distinguish those with Get's bool
// return, not with a zero value.
//
// In-flight work items hold the *V returned by Insert directly: once stored,
// an entry never moves, because each entry is its own heap allocation
// referenced through the map, not a struct embedded in a slice that could be
// reallocated on growth. Growing the table's internal map only moves map
// bucket bookkeeping, never the pointed-to value.
package objecttable

import (
	"sync"

	"github.com/oxyreplay/pipewarm/internal/hashid"
)

// Table is a thread-safe Hash -> *V map with stable entry addresses.
type Table[V any] struct {
	mu      sync.RWMutex
	entries map[hashid.Hash]*V
}

// New creates an empty Table.
func New[V any]() *Table[V] {
	return &Table[V]{entries: make(map[hashid.Hash]*V)}
}

// Insert records v under hash if no entry exists yet. It returns the stable
// pointer to the stored value (the new one, or the pre-existing one if
// another goroutine inserted first) and whether this call performed the
// insertion.
func (t *Table[V]) Insert(hash hashid.Hash, v V) (*V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[hash]; ok {
		return existing, false
	}
	stored := new(V)
	*stored = v
	t.entries[hash] = stored
	return stored, true
}

// Get returns the entry for hash, if any.
func (t *Table[V]) Get(hash hashid.Hash) (*V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[hash]
	return v, ok
}

// Has reports whether hash has an entry, without retrieving it.
func (t *Table[V]) Has(hash hashid.Hash) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[hash]
	return ok
}

// Len returns the number of entries currently stored.
func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Range calls fn for every entry. fn must not call back into the table.
// Iteration order is unspecified, matching Go map iteration.
func (t *Table[V]) Range(fn func(hashid.Hash, *V) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for h, v := range t.entries {
		if !fn(h, v) {
			return
		}
	}
}
