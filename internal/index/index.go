// Package index implements the in-memory key directory described in spec
// §4.5: a full map of every live key to its current value, rebuilt at open
// from a replay of the log and kept in sync on every subsequent write.
//
// The teacher's equivalent (internal/docdb/index.go) shards its map across
// buckets and layers MVCC versions over each entry, both in service of
// concurrent readers racing a concurrent writer. That concurrency is an
// explicit non-goal here (spec §1, Non-goals): a store has exactly one
// writer, so Index is deliberately a single unsharded map guarded by one
// mutex rather than a sharded/lock-free structure.
package index

import "sync"

// Index maps live keys to their current value. The zero value is not
// usable; construct with New.
type Index struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string][]byte)}
}

// Set records key as live with the given value, overwriting any prior
// value.
func (ix *Index) Set(key, value []byte) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[string(key)] = value
}

// Delete removes key from the index. It is a no-op if key is not present.
func (ix *Index) Delete(key []byte) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.entries, string(key))
}

// Get returns the current value for key and whether it is live.
func (ix *Index) Get(key []byte) ([]byte, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	v, ok := ix.entries[string(key)]
	return v, ok
}

// Len reports the number of live keys.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Snapshot returns a point-in-time copy of every live key/value pair, used
// by the compactor to rewrite the log without holding the index locked for
// the whole of the rewrite (spec §4.7).
func (ix *Index) Snapshot() map[string][]byte {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string][]byte, len(ix.entries))
	for k, v := range ix.entries {
		out[k] = v
	}
	return out
}

// Keys returns every live key, in no particular order.
func (ix *Index) Keys() [][]byte {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([][]byte, 0, len(ix.entries))
	for k := range ix.entries {
		out = append(out, []byte(k))
	}
	return out
}
