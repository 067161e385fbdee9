package testfixtures

import (
	"context"
	"sync"

	"github.com/example/agenda/internal/persistence"
	"github.com/example/agenda/internal/persistence/memory"
)

// KV is an in-memory key-value store that records writes and can be told to
// fail.
type KV struct {
	*memory.Store

	mu     sync.Mutex
	sets   map[string]int
	getErr error
	setErr error
}

var _ persistence.KeyValueStore = (*KV)(nil)

// NewKV returns an empty recording store.
func NewKV() *KV {
	return &KV{Store: memory.New(), sets: make(map[string]int)}
}

// FailGets makes every Get return err. A nil err restores normal reads.
func (k *KV) FailGets(err error) {
	k.mu.Lock()
	k.getErr = err
	k.mu.Unlock()
}

// FailSets makes every Set return err. A nil err restores normal writes.
func (k *KV) FailSets(err error) {
	k.mu.Lock()
	k.setErr = err
	k.mu.Unlock()
}

// Sets reports how many successful writes reached key.
func (k *KV) Sets(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sets[key]
}

// Get implements persistence.KeyValueStore.
func (k *KV) Get(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	err := k.getErr
	k.mu.Unlock()
	if err != nil {
		return "", err
	}
	return k.Store.Get(ctx, key)
}

// Set implements persistence.KeyValueStore.
func (k *KV) Set(ctx context.Context, key, value string) error {
	k.mu.Lock()
	err := k.setErr
	k.mu.Unlock()
	if err != nil {
		return err
	}
	if err := k.Store.Set(ctx, key, value); err != nil {
		return err
	}
	k.mu.Lock()
	k.sets[key]++
	k.mu.Unlock()
	return nil
}
