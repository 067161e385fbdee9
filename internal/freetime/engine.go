// Package freetime derives available time blocks from the gaps between busy
// intervals, one calendar day at a time.
package freetime

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/agenda/internal/record"
)

// DefaultMinGapMinutes is used when callers pass a non-positive minimum gap.
const DefaultMinGapMinutes = 30

// DayKeyLayout formats the calendar day used as cache key.
const DayKeyLayout = "2006-01-02"

// BlockName is the display name given to generated free blocks.
const BlockName = "Free time"

var blockNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("agenda/free-time"))

// Interval is a busy span of time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// RecordSource supplies the records whose times make a day busy.
type RecordSource interface {
	Records() []record.Record
}

// CourseSource supplies busy intervals derived from recurring course
// schedules for the given day.
type CourseSource interface {
	BusyIntervals(day time.Time) []Interval
}

// Option customises an Engine.
type Option func(*Engine)

// WithLocation sets the zone that defines day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithClock injects the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithOwner stamps generated blocks with the provided owner.
func WithOwner(ownerID string) Option {
	return func(e *Engine) { e.ownerID = ownerID }
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine computes free time blocks and caches them per day.
type Engine struct {
	records  RecordSource
	courses  CourseSource
	location *time.Location
	now      func() time.Time
	ownerID  string
	logger   *slog.Logger
	cache    *dayCache
}

// NewEngine wires the record and course collaborators. Either may be nil.
func NewEngine(records RecordSource, courses CourseSource, opts ...Option) *Engine {
	e := &Engine{
		records:  records,
		courses:  courses,
		location: time.Local,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cache = newDayCache(e.now)
	return e
}

// Location returns the zone used for day boundaries.
func (e *Engine) Location() *time.Location {
	return e.location
}

// Generate returns synthetic free-time records for every day from the day
// containing rangeStart through rangeEnd inclusive. An inverted range yields
// nothing.
func (e *Engine) Generate(rangeStart, rangeEnd time.Time, minGapMinutes int) []record.Record {
	if minGapMinutes <= 0 {
		minGapMinutes = DefaultMinGapMinutes
	}
	minGap := time.Duration(minGapMinutes) * time.Minute

	rangeStart = rangeStart.In(e.location)
	rangeEnd = rangeEnd.In(e.location)

	var (
		out  []record.Record
		hits int
	)
	for day := startOfDay(rangeStart); !day.After(rangeEnd); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		windowStart := laterOf(day, rangeStart)
		windowEnd := earlierOf(next, rangeEnd)
		if !windowStart.Before(windowEnd) {
			continue
		}

		key := day.Format(DayKeyLayout)
		if blocks, ok := e.cache.Get(key, windowStart, windowEnd, minGap); ok {
			hits++
			out = append(out, blocks...)
			continue
		}

		generation := e.cache.Generation()
		blocks := e.blocksForDay(day, next, windowStart, windowEnd, minGap)
		if !e.cache.Store(key, generation, windowStart, windowEnd, minGap, blocks) {
			e.logger.Debug("free time not cached after concurrent invalidation", "day", key)
		}
		out = append(out, blocks...)
	}

	e.logger.Debug("free time generated",
		"range_start", rangeStart,
		"range_end", rangeEnd,
		"min_gap_minutes", minGapMinutes,
		"blocks", len(out),
		"cache_hits", hits,
	)
	return out
}

// InvalidateAll clears every cached day.
func (e *Engine) InvalidateAll() {
	e.cache.InvalidateAll()
}

// InvalidateDay removes the cached blocks of the day containing date.
func (e *Engine) InvalidateDay(date time.Time) {
	e.cache.InvalidateDay(DayKey(date, e.location))
}

// LastInvalidation reports when the cache was last invalidated.
func (e *Engine) LastInvalidation() time.Time {
	return e.cache.LastInvalidation()
}

// CachedDays reports how many days currently hold cached blocks.
func (e *Engine) CachedDays() int {
	return e.cache.Len()
}

// DayKey formats the calendar day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayKeyLayout)
}

func (e *Engine) blocksForDay(day, next, windowStart, windowEnd time.Time, minGap time.Duration) []record.Record {
	busy := e.busyIntervals(day, next)
	if len(busy) == 0 {
		return []record.Record{e.newBlock(windowStart, windowEnd)}
	}

	var blocks []record.Record
	cursor := windowStart
	for _, iv := range busy {
		gapEnd := earlierOf(iv.Start, windowEnd)
		if gapEnd.Sub(cursor) >= minGap {
			blocks = append(blocks, e.newBlock(cursor, gapEnd))
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
		if !cursor.Before(windowEnd) {
			return blocks
		}
	}
	if windowEnd.Sub(cursor) >= minGap {
		blocks = append(blocks, e.newBlock(cursor, windowEnd))
	}
	return blocks
}

func (e *Engine) busyIntervals(day, next time.Time) []Interval {
	var busy []Interval
	if e.courses != nil {
		for _, iv := range e.courses.BusyIntervals(day) {
			if iv.End.After(iv.Start) {
				busy = append(busy, Interval{Start: iv.Start.In(e.location), End: iv.End.In(e.location)})
			}
		}
	}

	if e.records != nil {
		key := day.Format(DayKeyLayout)
		for _, rec := range e.records.Records() {
			if rec.IsAutoGenerated || rec.StartTime == nil {
				continue
			}
			if DayKey(*rec.StartTime, e.location) != key {
				continue
			}
			if rec.IsAllDay {
				busy = append(busy, Interval{Start: day, End: next})
				continue
			}
			start, end, ok := rec.Interval()
			if !ok || !end.After(start) {
				continue
			}
			busy = append(busy, Interval{Start: start.In(e.location), End: end.In(e.location)})
		}
	}

	sort.SliceStable(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})
	return busy
}

func (e *Engine) newBlock(start, end time.Time) record.Record {
	minutes := int(end.Sub(start) / time.Minute)
	created := e.now()
	return record.Record{
		ID:               BlockID(start, end),
		OwnerID:          e.ownerID,
		Name:             BlockName,
		Status:           record.StatusConfirmed,
		Priority:         record.PrioritySoft,
		StartTime:        record.TimePtr(start),
		EndTime:          record.TimePtr(end),
		DurationMinutes:  &minutes,
		IsAutoGenerated:  true,
		FreeTimeCategory: record.FreeTimeAvailable,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
}

// BlockID derives the stable identifier of a free block from its bounds.
func BlockID(start, end time.Time) string {
	name := start.UTC().Format(time.RFC3339Nano) + "/" + end.UTC().Format(time.RFC3339Nano)
	return "free-" + uuid.NewSHA1(blockNamespace, []byte(name)).String()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
