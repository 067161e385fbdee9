package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested key does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrInvalidKey is returned when a blank key is used.
	ErrInvalidKey = errors.New("persistence: key must not be empty")
	// ErrLocked is returned when the backing database stays locked or busy
	// after retries.
	ErrLocked = errors.New("persistence: storage locked")
	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("persistence: storage closed")
)
