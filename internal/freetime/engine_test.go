package freetime

import (
	"testing"
	"time"

	"github.com/example/agenda/internal/record"
)

type recordSourceStub struct {
	records []record.Record
	calls   int
}

func (s *recordSourceStub) Records() []record.Record {
	s.calls++
	return s.records
}

// invalidatingSource invalidates the engine's cache the first time records
// are read, standing in for a mutation that lands mid-computation.
type invalidatingSource struct {
	engine  *Engine
	records []record.Record
	fired   bool
}

func (s *invalidatingSource) Records() []record.Record {
	if !s.fired {
		s.fired = true
		s.engine.InvalidateDay(hm(6, 0, 0))
	}
	return s.records
}

type courseSourceStub struct {
	intervals map[string][]Interval
}

func (s courseSourceStub) BusyIntervals(day time.Time) []Interval {
	return s.intervals[day.Format(DayKeyLayout)]
}

var fixedNow = time.Date(2024, time.May, 1, 7, 0, 0, 0, time.UTC)

func hm(day, hour, minute int) time.Time {
	return time.Date(2024, time.May, day, hour, minute, 0, 0, time.UTC)
}

func event(id, owner string, start, end time.Time) record.Record {
	return record.Record{ID: id, OwnerID: owner, Name: id, StartTime: &start, EndTime: &end}
}

func newTestEngine(records RecordSource, courses CourseSource) *Engine {
	return NewEngine(records, courses,
		WithLocation(time.UTC),
		WithClock(func() time.Time { return fixedNow }),
		WithOwner("p1"),
	)
}

func assertBlocks(t *testing.T, got []record.Record, want [][2]time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(got), spans(got))
	}
	for i, w := range want {
		if !got[i].StartTime.Equal(w[0]) || !got[i].EndTime.Equal(w[1]) {
			t.Fatalf("block %d: got %v-%v, want %v-%v", i, got[i].StartTime, got[i].EndTime, w[0], w[1])
		}
	}
}

func spans(blocks []record.Record) [][2]time.Time {
	out := make([][2]time.Time, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, [2]time.Time{*b.StartTime, *b.EndTime})
	}
	return out
}

func TestEngineGenerate(t *testing.T) {
	t.Parallel()

	t.Run("empty day yields one clipped block", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(&recordSourceStub{}, nil)

		blocks := engine.Generate(hm(6, 0, 0), hm(7, 0, 0), 30)
		assertBlocks(t, blocks, [][2]time.Time{{hm(6, 0, 0), hm(7, 0, 0)}})

		b := blocks[0]
		if !b.IsAutoGenerated || b.FreeTimeCategory != record.FreeTimeAvailable {
			t.Fatalf("expected generated available block, got %+v", b)
		}
		if b.Status != record.StatusConfirmed || b.Priority != record.PrioritySoft {
			t.Fatalf("unexpected status/priority %s/%s", b.Status, b.Priority)
		}
		if b.OwnerID != "p1" || b.Name != BlockName {
			t.Fatalf("unexpected owner/name %q/%q", b.OwnerID, b.Name)
		}
		if b.DurationMinutes == nil || *b.DurationMinutes != 24*60 {
			t.Fatalf("expected full-day duration, got %v", b.DurationMinutes)
		}
	})

	t.Run("gaps around two events", func(t *testing.T) {
		t.Parallel()
		source := &recordSourceStub{records: []record.Record{
			event("b", "p1", hm(6, 11, 0), hm(6, 12, 0)),
			event("a", "p1", hm(6, 9, 0), hm(6, 10, 0)),
		}}
		engine := newTestEngine(source, nil)

		blocks := engine.Generate(hm(6, 8, 0), hm(6, 13, 0), 30)
		assertBlocks(t, blocks, [][2]time.Time{
			{hm(6, 8, 0), hm(6, 9, 0)},
			{hm(6, 10, 0), hm(6, 11, 0)},
			{hm(6, 12, 0), hm(6, 13, 0)},
		})
	})

	t.Run("gaps below the minimum are dropped", func(t *testing.T) {
		t.Parallel()
		source := &recordSourceStub{records: []record.Record{
			event("a", "p1", hm(6, 9, 0), hm(6, 10, 0)),
			event("b", "p1", hm(6, 10, 29), hm(6, 11, 0)),
			event("c", "p1", hm(6, 11, 30), hm(6, 12, 0)),
		}}
		engine := newTestEngine(source, nil)

		blocks := engine.Generate(hm(6, 8, 45), hm(6, 12, 20), 30)
		assertBlocks(t, blocks, [][2]time.Time{
			{hm(6, 11, 0), hm(6, 11, 30)},
		})
	})

	t.Run("non-positive minimum uses the default", func(t *testing.T) {
		t.Parallel()
		source := &recordSourceStub{records: []record.Record{
			event("a", "p1", hm(6, 9, 0), hm(6, 10, 0)),
			event("b", "p1", hm(6, 10, 20), hm(6, 11, 0)),
		}}
		engine := newTestEngine(source, nil)

		blocks := engine.Generate(hm(6, 9, 0), hm(6, 11, 0), 0)
		if len(blocks) != 0 {
			t.Fatalf("expected the 20 minute gap to be dropped, got %v", spans(blocks))
		}
	})

	t.Run("overlapping intervals measure from the latest end", func(t *testing.T) {
		t.Parallel()
		source := &recordSourceStub{records: []record.Record{
			event("long", "p1", hm(6, 9, 0), hm(6, 12, 0)),
			event("inner", "p1", hm(6, 9, 30), hm(6, 10, 0)),
			event("late", "p1", hm(6, 11, 0), hm(6, 13, 0)),
		}}
		engine := newTestEngine(source, nil)

		blocks := engine.Generate(hm(6, 9, 0), hm(6, 14, 0), 30)
		assertBlocks(t, blocks, [][2]time.Time{{hm(6, 13, 0), hm(6, 14, 0)}})
	})

	t.Run("busy intervals ignore owners", func(t *testing.T) {
		t.Parallel()
		source := &recordSourceStub{records: []record.Record{
			event("a", "someone-else", hm(6, 9, 0), hm(6, 10, 0)),
		}}
		engine := newTestEngine(source, nil)

		blocks := engine.Generate(hm(6, 8, 0), hm(6, 11, 0), 30)
		assertBlocks(t, blocks, [][2]time.Time{
			{hm(6, 8, 0), hm(6, 9, 0)},
			{hm(6, 10, 0), hm(6, 11, 0)},
		})
	})

	t.Run("course schedules count as busy", func(t *testing.T) {
		t.Parallel()
		courses := courseSourceStub{intervals: map[string][]Interval{
			"2024-05-06": {{Start: hm(6, 9, 0), End: hm(6, 11, 0)}},
		}}
		engine := newTestEngine(&recordSourceStub{}, courses)

		blocks := engine.Generate(hm(6, 8, 0), hm(6, 12, 0), 30)
		assertBlocks(t, blocks, [][2]time.Time{
			{hm(6, 8, 0), hm(6, 9, 0)},
			{hm(6, 11, 0), hm(6, 12, 0)},
		})
	})

	t.Run("all-day records fill the day", func(t *testing.T) {
		t.Parallel()
		holiday := event("holiday", "p1", hm(6, 0, 0), hm(6, 0, 0))
		holiday.EndTime = nil
		holiday.IsAllDay = true
		engine := newTestEngine(&recordSourceStub{records: []record.Record{holiday}}, nil)

		if blocks := engine.Generate(hm(6, 8, 0), hm(6, 18, 0), 30); len(blocks) != 0 {
			t.Fatalf("expected no free time on an all-day record, got %v", spans(blocks))
		}
	})

	t.Run("records without a derivable end are ignored", func(t *testing.T) {
		t.Parallel()
		open := event("open", "p1", hm(6, 9, 0), hm(6, 9, 0))
		open.EndTime = nil
		engine := newTestEngine(&recordSourceStub{records: []record.Record{open}}, nil)

		blocks := engine.Generate(hm(6, 8, 0), hm(6, 10, 0), 30)
		assertBlocks(t, blocks, [][2]time.Time{{hm(6, 8, 0), hm(6, 10, 0)}})
	})

	t.Run("spans multiple days", func(t *testing.T) {
		t.Parallel()
		source := &recordSourceStub{records: []record.Record{
			event("a", "p1", hm(7, 9, 0), hm(7, 17, 0)),
		}}
		engine := newTestEngine(source, nil)

		blocks := engine.Generate(hm(6, 20, 0), hm(7, 18, 0), 30)
		assertBlocks(t, blocks, [][2]time.Time{
			{hm(6, 20, 0), hm(7, 0, 0)},
			{hm(7, 0, 0), hm(7, 9, 0)},
			{hm(7, 17, 0), hm(7, 18, 0)},
		})
	})

	t.Run("inverted range yields nothing", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(&recordSourceStub{}, nil)
		if blocks := engine.Generate(hm(7, 0, 0), hm(6, 0, 0), 30); len(blocks) != 0 {
			t.Fatalf("expected empty result, got %v", spans(blocks))
		}
	})

	t.Run("zero width range yields nothing", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(&recordSourceStub{}, nil)
		if blocks := engine.Generate(hm(6, 9, 0), hm(6, 9, 0), 30); len(blocks) != 0 {
			t.Fatalf("expected empty result, got %v", spans(blocks))
		}
		if engine.CachedDays() != 0 {
			t.Fatalf("expected nothing cached, got %d", engine.CachedDays())
		}
	})

	t.Run("block ids are deterministic", func(t *testing.T) {
		t.Parallel()
		first := newTestEngine(&recordSourceStub{}, nil).Generate(hm(6, 8, 0), hm(6, 9, 0), 30)
		second := newTestEngine(&recordSourceStub{}, nil).Generate(hm(6, 8, 0), hm(6, 9, 0), 30)
		if first[0].ID != second[0].ID || first[0].ID != BlockID(hm(6, 8, 0), hm(6, 9, 0)) {
			t.Fatalf("expected stable block id, got %q and %q", first[0].ID, second[0].ID)
		}
		other := BlockID(hm(6, 8, 0), hm(6, 9, 30))
		if other == first[0].ID {
			t.Fatalf("expected different bounds to produce different ids")
		}
	})
}

func TestEngineCache(t *testing.T) {
	t.Parallel()

	t.Run("cached days are reused until invalidated", func(t *testing.T) {
		t.Parallel()
		source := &recordSourceStub{}
		engine := newTestEngine(source, nil)

		engine.Generate(hm(6, 8, 0), hm(6, 12, 0), 30)
		if engine.CachedDays() != 1 {
			t.Fatalf("expected one cached day, got %d", engine.CachedDays())
		}

		source.records = []record.Record{event("a", "p1", hm(6, 9, 0), hm(6, 10, 0))}
		stale := engine.Generate(hm(6, 8, 0), hm(6, 12, 0), 30)
		assertBlocks(t, stale, [][2]time.Time{{hm(6, 8, 0), hm(6, 12, 0)}})

		engine.InvalidateDay(hm(6, 15, 0))
		fresh := engine.Generate(hm(6, 8, 0), hm(6, 12, 0), 30)
		assertBlocks(t, fresh, [][2]time.Time{
			{hm(6, 8, 0), hm(6, 9, 0)},
			{hm(6, 10, 0), hm(6, 12, 0)},
		})
		if !engine.LastInvalidation().Equal(fixedNow) {
			t.Fatalf("expected invalidation timestamp from clock, got %v", engine.LastInvalidation())
		}
	})

	t.Run("different parameters recompute", func(t *testing.T) {
		t.Parallel()
		source := &recordSourceStub{records: []record.Record{event("a", "p1", hm(6, 9, 0), hm(6, 10, 0))}}
		engine := newTestEngine(source, nil)

		engine.Generate(hm(6, 8, 0), hm(6, 12, 0), 30)
		calls := source.calls
		engine.Generate(hm(6, 8, 0), hm(6, 12, 0), 30)
		if source.calls != calls {
			t.Fatalf("expected cache hit to skip record lookups")
		}

		narrowed := engine.Generate(hm(6, 9, 30), hm(6, 12, 0), 30)
		assertBlocks(t, narrowed, [][2]time.Time{{hm(6, 10, 0), hm(6, 12, 0)}})
		if source.calls == calls {
			t.Fatalf("expected a recompute for a different window")
		}
	})

	t.Run("blocks computed across an invalidation are not cached", func(t *testing.T) {
		t.Parallel()
		source := &invalidatingSource{}
		engine := newTestEngine(source, nil)
		source.engine = engine

		engine.Generate(hm(6, 8, 0), hm(6, 12, 0), 30)
		if engine.CachedDays() != 0 {
			t.Fatalf("expected the raced day to stay uncached, got %d", engine.CachedDays())
		}

		source.records = []record.Record{event("a", "p1", hm(6, 9, 0), hm(6, 10, 0))}
		fresh := engine.Generate(hm(6, 8, 0), hm(6, 12, 0), 30)
		assertBlocks(t, fresh, [][2]time.Time{
			{hm(6, 8, 0), hm(6, 9, 0)},
			{hm(6, 10, 0), hm(6, 12, 0)},
		})
		if engine.CachedDays() != 1 {
			t.Fatalf("expected the recomputed day to be cached, got %d", engine.CachedDays())
		}
	})

	t.Run("invalidate all clears every day", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(&recordSourceStub{}, nil)
		engine.Generate(hm(6, 0, 0), hm(8, 12, 0), 30)
		if engine.CachedDays() != 3 {
			t.Fatalf("expected three cached days, got %d", engine.CachedDays())
		}
		engine.InvalidateAll()
		if engine.CachedDays() != 0 {
			t.Fatalf("expected empty cache, got %d", engine.CachedDays())
		}
	})

	t.Run("returned blocks are copies", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(&recordSourceStub{}, nil)
		first := engine.Generate(hm(6, 8, 0), hm(6, 9, 0), 30)
		*first[0].StartTime = hm(6, 0, 0)

		second := engine.Generate(hm(6, 8, 0), hm(6, 9, 0), 30)
		if !second[0].StartTime.Equal(hm(6, 8, 0)) {
			t.Fatalf("cached block was mutated through a returned copy")
		}
	})
}
