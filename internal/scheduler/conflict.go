// Package scheduler detects collisions between a candidate record and the
// records already on the agenda.
package scheduler

import (
	"fmt"
	"time"

	"github.com/example/agenda/internal/record"
)

// ConflictType describes the type of conflict detected between records.
type ConflictType string

const (
	// ConflictTypeOverlap indicates two records of the same owner intersect in time.
	ConflictTypeOverlap ConflictType = "overlap"
)

// Severity classifies whether a conflict blocks the candidate.
type Severity string

const (
	// SeverityWarning conflicts are informational and do not block.
	SeverityWarning Severity = "warning"
	// SeverityError conflicts block the candidate until resolved.
	SeverityError Severity = "error"
)

// ResolutionAction tags the remedy a ResolutionOption proposes.
type ResolutionAction string

const (
	// ActionPostponeNew puts the candidate under review.
	ActionPostponeNew ResolutionAction = "postpone_new"
	// ActionMoveExisting displaces the existing (soft) record.
	ActionMoveExisting ResolutionAction = "move_existing"
	// ActionReviewBoth puts both records under review.
	ActionReviewBoth ResolutionAction = "review_both"
)

// ResolutionOption is a suggestion callers can present to users.
type ResolutionOption struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Description string           `json:"description"`
	Action      ResolutionAction `json:"action"`
	Impact      string           `json:"impact"`
}

// TimeRange is a half-open span of time.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Conflict details a collision between the candidate and one existing record.
// Records holds the candidate first, then the existing record.
type Conflict struct {
	Type           ConflictType       `json:"type"`
	Severity       Severity           `json:"severity"`
	Records        []record.Record    `json:"records"`
	OverlapMinutes int                `json:"overlapMinutes"`
	Range          TimeRange          `json:"range"`
	Message        string             `json:"message"`
	Resolutions    []ResolutionOption `json:"resolutions"`
	DetectedAt     time.Time          `json:"detectedAt"`
}

// Result aggregates every conflict found for a candidate.
type Result struct {
	HasConflicts bool       `json:"hasConflicts"`
	Conflicts    []Conflict `json:"conflicts"`
	CanProceed   bool       `json:"canProceed"`
}

// Detector runs conflict detection with an injectable clock.
type Detector struct {
	now func() time.Time
}

// NewDetector constructs a Detector. A nil clock defaults to time.Now.
func NewDetector(now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{now: now}
}

// DetectConflicts identifies conflicts for the candidate against existing records.
func DetectConflicts(candidate record.Record, existing []record.Record) Result {
	return NewDetector(nil).Detect(candidate, existing)
}

// Detect identifies conflicts for the candidate against existing records.
//
// Only records sharing the candidate's owner, carrying both start and end
// times and having a different ID are considered. Records with missing times
// never conflict and are not reported as errors.
func (d *Detector) Detect(candidate record.Record, existing []record.Record) Result {
	now := time.Now
	if d != nil && d.now != nil {
		now = d.now
	}

	result := Result{CanProceed: true}
	if !candidate.HasTimeRange() {
		return result
	}

	start1, end1 := *candidate.StartTime, *candidate.EndTime
	detectedAt := now()

	for _, other := range existing {
		if other.OwnerID != candidate.OwnerID || other.ID == candidate.ID || !other.HasTimeRange() {
			continue
		}
		start2, end2 := *other.StartTime, *other.EndTime
		if !(start1.Before(end2) && start2.Before(end1)) {
			continue
		}

		overlapStart := laterOf(start1, start2)
		overlapEnd := earlierOf(end1, end2)
		minutes := int(overlapEnd.Sub(overlapStart) / time.Minute)

		result.Conflicts = append(result.Conflicts, Conflict{
			Type:           ConflictTypeOverlap,
			Severity:       SeverityError,
			Records:        []record.Record{candidate.Clone(), other.Clone()},
			OverlapMinutes: minutes,
			Range:          TimeRange{Start: overlapStart, End: overlapEnd},
			Message:        fmt.Sprintf("%q overlaps %q for %d minutes", candidate.Name, other.Name, minutes),
			Resolutions:    suggestResolutions(candidate, other),
			DetectedAt:     detectedAt,
		})
	}

	result.HasConflicts = len(result.Conflicts) > 0
	for _, c := range result.Conflicts {
		if c.Severity != SeverityWarning {
			result.CanProceed = false
			break
		}
	}
	return result
}

func suggestResolutions(candidate, existing record.Record) []ResolutionOption {
	options := make([]ResolutionOption, 0, 3)
	options = append(options, ResolutionOption{
		ID:          string(ActionPostponeNew),
		Label:       "Postpone new record",
		Description: fmt.Sprintf("Keep %q as scheduled and put %q under review.", existing.Name, candidate.Name),
		Action:      ActionPostponeNew,
		Impact:      fmt.Sprintf("%q will not be confirmed until it is rescheduled.", candidate.Name),
	})
	if existing.Priority == record.PrioritySoft {
		options = append(options, ResolutionOption{
			ID:          string(ActionMoveExisting),
			Label:       "Move existing record",
			Description: fmt.Sprintf("Move %q so that %q can take its slot.", existing.Name, candidate.Name),
			Action:      ActionMoveExisting,
			Impact:      fmt.Sprintf("%q is flexible and will start after %q ends.", existing.Name, candidate.Name),
		})
	}
	options = append(options, ResolutionOption{
		ID:          string(ActionReviewBoth),
		Label:       "Review both records",
		Description: fmt.Sprintf("Mark %q and %q as under review.", candidate.Name, existing.Name),
		Action:      ActionReviewBoth,
		Impact:      "Both records stay on the agenda but neither counts as confirmed.",
	})
	return options
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
