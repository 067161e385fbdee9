package application

import (
	"time"

	"github.com/example/agenda/internal/record"
	"github.com/example/agenda/internal/scheduler"
)

// RecordInput captures caller provided record fields. ID is optional; when
// empty a new identifier is generated.
type RecordInput struct {
	ID        string
	OwnerID   string
	Name      string
	AreaID    string
	ContextID string
	TypeID    string

	Status   record.Status
	Priority record.Priority

	StartTime       *time.Time
	EndTime         *time.Time
	DurationMinutes *int
	IsAllDay        bool

	BufferBefore *record.Buffer
	BufferAfter  *record.Buffer
	Checklist    []record.ChecklistItem
	Artifacts    []record.Artifact
}

// CreateResult is the outcome of creating a record: the stored record and
// the conflicts it raised at creation time.
type CreateResult struct {
	Record    record.Record
	Conflicts scheduler.Result
}

// UpdateResult is the outcome of updating a record.
type UpdateResult struct {
	Record    record.Record
	Conflicts scheduler.Result
}

// RecordFilter narrows ListRecords. Zero fields match everything. When a
// window is set, only timed records intersecting it are returned.
type RecordFilter struct {
	OwnerID   string
	AreaID    string
	ContextID string
	TypeID    string
	Statuses  []record.Status
	From      *time.Time
	To        *time.Time
}

// ResolutionOutcome lists the records changed by ApplyResolution.
type ResolutionOutcome struct {
	Action  scheduler.ResolutionAction
	Records []record.Record
}

// HistoryState mirrors the undo/redo availability of the agenda.
type HistoryState struct {
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}
