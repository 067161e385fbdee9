// Package record defines the schedulable unit shared by the agenda engines.
package record

import (
	"errors"
	"maps"
	"strings"
	"time"
)

// Status describes where a record is in its lifecycle.
type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusDraft       Status = "draft"
	StatusUnderReview Status = "under_review"
	StatusDiscarded   Status = "discarded"
	StatusPostponed   Status = "postponed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusDraft, StatusUnderReview, StatusDiscarded, StatusPostponed:
		return true
	}
	return false
}

// Priority controls whether a record may be displaced by others.
type Priority string

const (
	// PriorityHard records are immovable and force others to move.
	PriorityHard Priority = "hard"
	// PrioritySoft records are flexible and may be displaced.
	PrioritySoft Priority = "soft"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityHard || p == PrioritySoft
}

// FreeTimeCategory tags synthetic records produced by the free-time engine.
type FreeTimeCategory string

const (
	// FreeTimeNone marks a user-authored record.
	FreeTimeNone FreeTimeCategory = ""
	// FreeTimeAvailable marks a generated gap between busy intervals.
	FreeTimeAvailable FreeTimeCategory = "available"
)

// Buffer reserves time before or after a record.
type Buffer struct {
	Minutes     int    `json:"minutes"`
	Description string `json:"description,omitempty"`
}

// ChecklistItem is a sub-task attached to a record. Area and context may
// differ from the parent record.
type ChecklistItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	AreaID    string `json:"areaId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
}

// Artifact is a generic attachment (link, note, file reference).
type Artifact struct {
	Kind     string            `json:"kind"`
	Name     string            `json:"name"`
	Value    string            `json:"value"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Record is the universal schedulable unit: event, task, reminder or
// generated free-time block.
type Record struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	Name      string `json:"name"`
	AreaID    string `json:"areaId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
	TypeID    string `json:"typeId,omitempty"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`

	StartTime       *time.Time `json:"startTime,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
	IsAllDay        bool       `json:"isAllDay,omitempty"`

	BufferBefore *Buffer `json:"bufferBefore,omitempty"`
	BufferAfter  *Buffer `json:"bufferAfter,omitempty"`

	Checklist []ChecklistItem `json:"checklist,omitempty"`
	Artifacts []Artifact      `json:"artifacts,omitempty"`

	IsAutoGenerated  bool             `json:"isAutoGenerated,omitempty"`
	FreeTimeCategory FreeTimeCategory `json:"freeTimeCategory,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	// ErrNameRequired is returned by Validate when the name is blank.
	ErrNameRequired = errors.New("record: name is required")
	// ErrOwnerRequired is returned by Validate when the owner is blank.
	ErrOwnerRequired = errors.New("record: owner is required")
	// ErrInvertedRange is returned by Validate when start is after end.
	ErrInvertedRange = errors.New("record: start must not be after end")
)

// Validate checks the invariants every stored record must satisfy.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrOwnerRequired
	}
	if r.StartTime != nil && r.EndTime != nil && r.StartTime.After(*r.EndTime) {
		return ErrInvertedRange
	}
	return nil
}

// HasTimeRange reports whether both start and end are present.
func (r Record) HasTimeRange() bool {
	return r.StartTime != nil && r.EndTime != nil
}

// Interval returns the busy span of the record. The end falls back to the
// explicit duration when EndTime is absent.
func (r Record) Interval() (start, end time.Time, ok bool) {
	if r.StartTime == nil {
		return time.Time{}, time.Time{}, false
	}
	start = *r.StartTime
	switch {
	case r.EndTime != nil:
		end = *r.EndTime
	case r.DurationMinutes != nil && *r.DurationMinutes > 0:
		end = start.Add(time.Duration(*r.DurationMinutes) * time.Minute)
	default:
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Duration returns the span between start and end, or zero without a range.
func (r Record) Duration() time.Duration {
	start, end, ok := r.Interval()
	if !ok {
		return 0
	}
	return end.Sub(start)
}

// Clone returns a deep copy that shares no mutable state with r.
func (r Record) Clone() Record {
	out := r
	out.StartTime = cloneTime(r.StartTime)
	out.EndTime = cloneTime(r.EndTime)
	if r.DurationMinutes != nil {
		d := *r.DurationMinutes
		out.DurationMinutes = &d
	}
	if r.BufferBefore != nil {
		b := *r.BufferBefore
		out.BufferBefore = &b
	}
	if r.BufferAfter != nil {
		b := *r.BufferAfter
		out.BufferAfter = &b
	}
	if r.Checklist != nil {
		out.Checklist = append([]ChecklistItem(nil), r.Checklist...)
	}
	if r.Artifacts != nil {
		out.Artifacts = make([]Artifact, len(r.Artifacts))
		for i, a := range r.Artifacts {
			a.Metadata = maps.Clone(a.Metadata)
			out.Artifacts[i] = a
		}
	}
	return out
}

// CloneAll deep copies a record list. A nil input yields nil.
func CloneAll(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
