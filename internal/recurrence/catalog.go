package recurrence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/agenda/internal/freetime"
)

// Catalog holds the course rules of an agenda and answers which of them
// occupy a given day. It satisfies freetime.CourseSource.
type Catalog struct {
	mu     sync.RWMutex
	engine *Engine
	rules  []Rule
	logger *slog.Logger
}

// NewCatalog constructs a Catalog. A nil engine uses the local zone.
func NewCatalog(engine *Engine, rules []Rule, logger *slog.Logger) *Catalog {
	if engine == nil {
		engine = NewEngine(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		engine: engine,
		rules:  append([]Rule(nil), rules...),
		logger: logger,
	}
}

// Rules returns a copy of the configured rules.
func (c *Catalog) Rules() []Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Rule(nil), c.rules...)
}

// Replace swaps the configured rules.
func (c *Catalog) Replace(rules []Rule) {
	c.mu.Lock()
	c.rules = append([]Rule(nil), rules...)
	c.mu.Unlock()
}

// BusyIntervals expands every rule over the calendar day starting at day.
// Rules that fail to expand are logged and skipped.
func (c *Catalog) BusyIntervals(day time.Time) []freetime.Interval {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var out []freetime.Interval
	for _, rule := range c.Rules() {
		occurrences, err := c.engine.GenerateOccurrences(rule, start, end)
		if err != nil {
			c.logger.Warn("skipping course rule", "rule_id", rule.ID, "error", err)
			continue
		}
		for _, occ := range occurrences {
			out = append(out, freetime.Interval{Start: occ.Start, End: occ.End})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
