package freetime

import (
	"sync"
	"time"

	"github.com/example/agenda/internal/record"
)

// dayCache stores the free blocks computed for each calendar day. Entries
// remember the window and minimum gap they were computed for so a request
// with different parameters recomputes instead of reusing stale clipping.
// Every invalidation bumps generation; blocks computed under an older
// generation are not stored.
type dayCache struct {
	mu               sync.RWMutex
	now              func() time.Time
	entries          map[string]dayCacheEntry
	lastInvalidation time.Time
	generation       uint64
}

type dayCacheEntry struct {
	windowStart time.Time
	windowEnd   time.Time
	minGap      time.Duration
	blocks      []record.Record
}

func newDayCache(now func() time.Time) *dayCache {
	if now == nil {
		now = time.Now
	}
	return &dayCache{
		now:     now,
		entries: make(map[string]dayCacheEntry),
	}
}

func (c *dayCache) Get(key string, windowStart, windowEnd time.Time, minGap time.Duration) ([]record.Record, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if entry.minGap != minGap || !entry.windowStart.Equal(windowStart) || !entry.windowEnd.Equal(windowEnd) {
		return nil, false
	}
	return record.CloneAll(entry.blocks), true
}

func (c *dayCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Store caches blocks computed while the cache was at generation. It reports
// false when an invalidation happened in between.
func (c *dayCache) Store(key string, generation uint64, windowStart, windowEnd time.Time, minGap time.Duration, blocks []record.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.entries[key] = dayCacheEntry{
		windowStart: windowStart,
		windowEnd:   windowEnd,
		minGap:      minGap,
		blocks:      record.CloneAll(blocks),
	}
	return true
}

func (c *dayCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]dayCacheEntry)
	c.generation++
	c.lastInvalidation = c.now()
	c.mu.Unlock()
}

func (c *dayCache) InvalidateDay(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.generation++
	c.lastInvalidation = c.now()
	c.mu.Unlock()
}

func (c *dayCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *dayCache) LastInvalidation() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastInvalidation
}
