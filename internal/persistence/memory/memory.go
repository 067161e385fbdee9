// Package memory provides an in-process persistence.KeyValueStore.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/example/agenda/internal/persistence"
)

// Store keeps values in a map guarded by a mutex.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// Get implements persistence.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := persistence.ValidateKey(key); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", persistence.ErrNotFound
	}
	return value, nil
}

// Set implements persistence.KeyValueStore.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := persistence.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Remove implements persistence.KeyValueStore.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// Clear implements persistence.KeyValueStore.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.values = make(map[string]string)
	s.mu.Unlock()
	return nil
}

// Keys returns the stored keys in lexical order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
