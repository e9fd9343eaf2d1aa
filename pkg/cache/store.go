// Package cache holds derived build artifacts in named stores.
package cache

import (
	"sync"

	"github.com/grovetools/basin/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Store is a namespaced artifact cache. Each store keeps its keys in first
// insertion order; overwriting a key keeps its position.
// It is safe for concurrent use; concurrent writers to one key resolve as
// last write wins.
type Store struct {
	mu     sync.RWMutex
	stores *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, any]]
}

// New creates an empty cache.
func New() *Store {
	return &Store{
		stores: orderedmap.New[string, *orderedmap.OrderedMap[string, any]](),
	}
}

// Cache stores value under (store, key), creating the store on first use,
// and returns the value. Other entries are never discarded.
func (s *Store) Cache(store, key string, value any) (any, error) {
	if store == "" || key == "" {
		return nil, errors.InvalidKey(store, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.stores.Get(store)
	if !ok {
		entries = orderedmap.New[string, any]()
		s.stores.Set(store, entries)
	}
	entries.Set(key, value)
	return value, nil
}

// Purge removes (store, key) and returns the removed value. An absent store or
// key reports false and changes nothing.
func (s *Store) Purge(store, key string) (any, bool, error) {
	if store == "" || key == "" {
		return nil, false, errors.InvalidKey(store, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.stores.Get(store)
	if !ok {
		return nil, false, nil
	}
	value, present := entries.Delete(key)
	return value, present, nil
}

// Get returns a snapshot of every value in store, in insertion order. A store
// that does not exist yields an empty slice.
func (s *Store) Get(store string) ([]any, error) {
	if store == "" {
		return nil, errors.InvalidKey(store, "")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.stores.Get(store)
	if !ok {
		return []any{}, nil
	}

	values := make([]any, 0, entries.Len())
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		values = append(values, pair.Value)
	}
	return values, nil
}

// Lookup returns the single value stored under (store, key).
func (s *Store) Lookup(store, key string) (any, bool, error) {
	if store == "" || key == "" {
		return nil, false, errors.InvalidKey(store, key)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.stores.Get(store)
	if !ok {
		return nil, false, nil
	}
	value, present := entries.Get(key)
	return value, present, nil
}

// Keys returns the keys of store in insertion order.
func (s *Store) Keys(store string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.stores.Get(store)
	if !ok {
		return nil
	}

	keys := make([]string, 0, entries.Len())
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Stores returns the store names in creation order. Stores emptied by Purge
// are still listed.
func (s *Store) Stores() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, s.stores.Len())
	for pair := s.stores.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Len returns the number of entries in store.
func (s *Store) Len(store string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.stores.Get(store)
	if !ok {
		return 0
	}
	return entries.Len()
}
