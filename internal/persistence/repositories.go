// Package persistence defines the string key-value contract the record store
// persists through, together with the errors every implementation reports.
package persistence

import (
	"context"
	"strings"
)

// Keys used by the record store.
const (
	KeyConfig  = "agenda.config"
	KeyRecords = "agenda.records"
)

// KeyValueStore persists opaque string values under string keys.
type KeyValueStore interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Clear deletes every key.
	Clear(ctx context.Context) error
}

// ValidateKey rejects blank keys.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}
