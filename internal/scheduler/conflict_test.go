package scheduler

import (
	"testing"
	"time"

	"github.com/example/agenda/internal/record"
)

var detectedAt = time.Date(2024, time.March, 14, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return detectedAt }

func slot(id, owner string, startHour, startMin, endHour, endMin int, priority record.Priority) record.Record {
	start := time.Date(2024, time.March, 14, startHour, startMin, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 14, endHour, endMin, 0, 0, time.UTC)
	return record.Record{
		ID:        id,
		OwnerID:   owner,
		Name:      "record " + id,
		Status:    record.StatusConfirmed,
		Priority:  priority,
		StartTime: &start,
		EndTime:   &end,
	}
}

func actions(c Conflict) []ResolutionAction {
	out := make([]ResolutionAction, 0, len(c.Resolutions))
	for _, r := range c.Resolutions {
		out = append(out, r.Action)
	}
	return out
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	detector := NewDetector(clock)

	t.Run("identical overlap against soft record", func(t *testing.T) {
		t.Parallel()
		existing := slot("a", "p1", 14, 0, 15, 0, record.PrioritySoft)
		candidate := slot("b", "p1", 14, 0, 15, 0, record.PriorityHard)

		result := detector.Detect(candidate, []record.Record{existing})

		if !result.HasConflicts || len(result.Conflicts) != 1 {
			t.Fatalf("expected exactly one conflict, got %+v", result)
		}
		c := result.Conflicts[0]
		if c.Type != ConflictTypeOverlap || c.Severity != SeverityError {
			t.Fatalf("unexpected conflict classification %s/%s", c.Type, c.Severity)
		}
		if c.OverlapMinutes != 60 {
			t.Fatalf("expected 60 overlap minutes, got %d", c.OverlapMinutes)
		}
		if c.Records[0].ID != "b" || c.Records[1].ID != "a" {
			t.Fatalf("expected candidate then existing, got %s,%s", c.Records[0].ID, c.Records[1].ID)
		}
		got := actions(c)
		want := []ResolutionAction{ActionPostponeNew, ActionMoveExisting, ActionReviewBoth}
		if len(got) != len(want) {
			t.Fatalf("expected actions %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected actions %v, got %v", want, got)
			}
		}
		if !c.DetectedAt.Equal(detectedAt) {
			t.Fatalf("expected detection timestamp from clock, got %v", c.DetectedAt)
		}
		if result.CanProceed {
			t.Fatalf("error conflicts must block the candidate")
		}
	})

	t.Run("partial overlap computes intersection", func(t *testing.T) {
		t.Parallel()
		existing := slot("a", "p1", 14, 0, 15, 0, record.PriorityHard)
		candidate := slot("b", "p1", 14, 30, 15, 30, record.PrioritySoft)

		result := detector.Detect(candidate, []record.Record{existing})

		if len(result.Conflicts) != 1 {
			t.Fatalf("expected one conflict, got %d", len(result.Conflicts))
		}
		c := result.Conflicts[0]
		if c.OverlapMinutes != 30 {
			t.Fatalf("expected 30 overlap minutes, got %d", c.OverlapMinutes)
		}
		if c.Range.Start.Hour() != 14 || c.Range.Start.Minute() != 30 || c.Range.End.Hour() != 15 || c.Range.End.Minute() != 0 {
			t.Fatalf("unexpected overlap range %v-%v", c.Range.Start, c.Range.End)
		}
		for _, a := range actions(c) {
			if a == ActionMoveExisting {
				t.Fatalf("move existing must not be offered for hard records")
			}
		}
		if len(c.Resolutions) != 2 {
			t.Fatalf("expected postpone and review options, got %v", actions(c))
		}
	})

	t.Run("overlap minutes are floored", func(t *testing.T) {
		t.Parallel()
		existing := slot("a", "p1", 9, 0, 10, 0, record.PriorityHard)
		candidate := slot("b", "p1", 9, 0, 10, 0, record.PriorityHard)
		end := candidate.EndTime.Add(-30 * time.Second)
		candidate.EndTime = &end

		result := detector.Detect(candidate, []record.Record{existing})
		if result.Conflicts[0].OverlapMinutes != 59 {
			t.Fatalf("expected 59 minutes, got %d", result.Conflicts[0].OverlapMinutes)
		}
	})

	t.Run("different owners never conflict", func(t *testing.T) {
		t.Parallel()
		existing := slot("a", "p1", 14, 0, 15, 0, record.PrioritySoft)
		candidate := slot("b", "p2", 14, 0, 15, 0, record.PrioritySoft)

		result := detector.Detect(candidate, []record.Record{existing})
		if result.HasConflicts || !result.CanProceed || len(result.Conflicts) != 0 {
			t.Fatalf("expected no conflicts across owners, got %+v", result)
		}
	})

	t.Run("records missing times are skipped", func(t *testing.T) {
		t.Parallel()
		noEnd := slot("a", "p1", 14, 0, 15, 0, record.PrioritySoft)
		noEnd.EndTime = nil
		noStart := slot("c", "p1", 14, 0, 15, 0, record.PrioritySoft)
		noStart.StartTime = nil
		candidate := slot("b", "p1", 14, 0, 15, 0, record.PrioritySoft)

		if result := detector.Detect(candidate, []record.Record{noEnd, noStart}); result.HasConflicts {
			t.Fatalf("expected records without times to be ignored, got %+v", result)
		}

		timeless := record.Record{ID: "x", OwnerID: "p1", Name: "timeless"}
		if result := detector.Detect(timeless, []record.Record{candidate}); result.HasConflicts || !result.CanProceed {
			t.Fatalf("expected timeless candidate to never conflict, got %+v", result)
		}
	})

	t.Run("same id is not a conflict", func(t *testing.T) {
		t.Parallel()
		existing := slot("a", "p1", 14, 0, 15, 0, record.PrioritySoft)
		if result := detector.Detect(existing, []record.Record{existing}); result.HasConflicts {
			t.Fatalf("a record must not conflict with itself")
		}
	})

	t.Run("adjacent records do not overlap", func(t *testing.T) {
		t.Parallel()
		existing := slot("a", "p1", 9, 0, 10, 0, record.PrioritySoft)
		candidate := slot("b", "p1", 10, 0, 11, 0, record.PrioritySoft)
		if result := detector.Detect(candidate, []record.Record{existing}); result.HasConflicts {
			t.Fatalf("touching intervals must not conflict")
		}
	})

	t.Run("aggregates multiple conflicts", func(t *testing.T) {
		t.Parallel()
		existing := []record.Record{
			slot("a", "p1", 9, 0, 10, 0, record.PrioritySoft),
			slot("c", "p1", 10, 30, 11, 30, record.PriorityHard),
			slot("d", "p1", 12, 0, 13, 0, record.PrioritySoft),
		}
		candidate := slot("b", "p1", 9, 30, 11, 0, record.PriorityHard)

		result := detector.Detect(candidate, existing)
		if len(result.Conflicts) != 2 {
			t.Fatalf("expected two conflicts, got %d", len(result.Conflicts))
		}
		if result.Conflicts[0].OverlapMinutes != 30 || result.Conflicts[1].OverlapMinutes != 30 {
			t.Fatalf("unexpected overlap minutes %d,%d", result.Conflicts[0].OverlapMinutes, result.Conflicts[1].OverlapMinutes)
		}
	})

	t.Run("no conflicts can proceed", func(t *testing.T) {
		t.Parallel()
		result := DetectConflicts(slot("b", "p1", 9, 0, 10, 0, record.PrioritySoft), nil)
		if result.HasConflicts || !result.CanProceed {
			t.Fatalf("empty existing set must allow proceeding, got %+v", result)
		}
	})
}
