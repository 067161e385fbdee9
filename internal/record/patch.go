package record

import "time"

// Patch describes a partial update. Nil fields are left untouched.
type Patch struct {
	Name      *string
	AreaID    *string
	ContextID *string
	TypeID    *string
	Status    *Status
	Priority  *Priority

	StartTime       *time.Time
	EndTime         *time.Time
	DurationMinutes *int
	IsAllDay        *bool
	// ClearTimes drops start, end and duration before the other temporal
	// fields are applied.
	ClearTimes bool

	BufferBefore *Buffer
	BufferAfter  *Buffer
	Checklist    *[]ChecklistItem
	Artifacts    *[]Artifact
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Name == nil && p.AreaID == nil && p.ContextID == nil && p.TypeID == nil &&
		p.Status == nil && p.Priority == nil && p.StartTime == nil && p.EndTime == nil &&
		p.DurationMinutes == nil && p.IsAllDay == nil && !p.ClearTimes &&
		p.BufferBefore == nil && p.BufferAfter == nil && p.Checklist == nil && p.Artifacts == nil
}

// TouchesTime reports whether applying the patch may move the record.
func (p Patch) TouchesTime() bool {
	return p.ClearTimes || p.StartTime != nil || p.EndTime != nil || p.DurationMinutes != nil || p.IsAllDay != nil
}

// Apply returns a copy of r with the patch applied and UpdatedAt set to now.
func (p Patch) Apply(r Record, now time.Time) Record {
	out := r.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.AreaID != nil {
		out.AreaID = *p.AreaID
	}
	if p.ContextID != nil {
		out.ContextID = *p.ContextID
	}
	if p.TypeID != nil {
		out.TypeID = *p.TypeID
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.ClearTimes {
		out.StartTime = nil
		out.EndTime = nil
		out.DurationMinutes = nil
	}
	if p.StartTime != nil {
		out.StartTime = cloneTime(p.StartTime)
	}
	if p.EndTime != nil {
		out.EndTime = cloneTime(p.EndTime)
	}
	if p.DurationMinutes != nil {
		d := *p.DurationMinutes
		out.DurationMinutes = &d
	}
	if p.IsAllDay != nil {
		out.IsAllDay = *p.IsAllDay
	}
	if p.BufferBefore != nil {
		b := *p.BufferBefore
		out.BufferBefore = &b
	}
	if p.BufferAfter != nil {
		b := *p.BufferAfter
		out.BufferAfter = &b
	}
	if p.Checklist != nil {
		out.Checklist = append([]ChecklistItem(nil), (*p.Checklist)...)
	}
	if p.Artifacts != nil {
		out.Artifacts = Record{Artifacts: *p.Artifacts}.Clone().Artifacts
	}
	out.UpdatedAt = now
	return out
}
