// Package registry provides a thread-safe name-indexed registry.
//
// The flowrun engine keeps its node units, tools, graph definitions and
// run records in registries so several engines can live in one process
// without sharing global maps.
package registry

import "sync"

// Registry is a thread-safe registry for values indexed by key.
// It uses sync.RWMutex for read-heavy workloads: registrations happen
// rarely, lookups happen on every step of every run.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates a new empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register adds or replaces a value in the registry.
// Returns true if an existing entry was replaced.
func (r *Registry[K, V]) Register(key K, value V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.entries[key]
	r.entries[key] = value
	return replaced
}

// RegisterMany adds or replaces multiple entries under a single lock.
func (r *Registry[K, V]) RegisterMany(entries map[K]V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range entries {
		r.entries[k] = v
	}
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Delete removes a key from the registry.
func (r *Registry[K, V]) Delete(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Keys returns all keys in the registry.
// The order is not guaranteed.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns a copy of the registry contents.
// Mutating the returned map does not affect the registry.
func (r *Registry[K, V]) Snapshot() map[K]V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Range calls fn for each entry of a snapshot taken under the read lock.
// Register and Delete may be called from fn. Iteration stops when fn
// returns false.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	for k, v := range r.Snapshot() {
		if !fn(k, v) {
			return
		}
	}
}
