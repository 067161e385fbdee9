package application

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULIDGenerator returns a goroutine-safe generator of lexically sortable
// identifiers stamped with now.
func NewULIDGenerator(now func() time.Time) func() string {
	if now == nil {
		now = time.Now
	}
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Timestamp(now()), entropy).String()
	}
}
