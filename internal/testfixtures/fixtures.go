// Package testfixtures offers deterministic clocks, identifiers, records and
// storage harnesses for tests across the agenda packages.
package testfixtures

import (
	"time"

	"github.com/example/agenda/internal/record"
)

// referenceTime is Monday 2024-03-04 00:00 UTC.
var referenceTime = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns hour:minute on the reference day.
func At(hour, minute int) time.Time {
	return referenceTime.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// RecordOption customises a fixture record.
type RecordOption func(*record.Record)

// Priority sets the record priority.
func Priority(p record.Priority) RecordOption {
	return func(r *record.Record) { r.Priority = p }
}

// Status sets the record status.
func Status(s record.Status) RecordOption {
	return func(r *record.Record) { r.Status = s }
}

// Owner sets the owner ID.
func Owner(ownerID string) RecordOption {
	return func(r *record.Record) { r.OwnerID = ownerID }
}

// Name sets the display name.
func Name(name string) RecordOption {
	return func(r *record.Record) { r.Name = name }
}

// Untimed removes start, end and duration.
func Untimed() RecordOption {
	return func(r *record.Record) {
		r.StartTime = nil
		r.EndTime = nil
		r.DurationMinutes = nil
	}
}

// OpenEnded keeps the start but drops the end.
func OpenEnded() RecordOption {
	return func(r *record.Record) { r.EndTime = nil }
}

// DurationOnly drops the end and records the span as a duration instead.
func DurationOnly() RecordOption {
	return func(r *record.Record) {
		if r.StartTime == nil || r.EndTime == nil {
			return
		}
		minutes := int(r.EndTime.Sub(*r.StartTime) / time.Minute)
		r.DurationMinutes = &minutes
		r.EndTime = nil
	}
}

// AllDay marks the record as spanning the whole day.
func AllDay() RecordOption {
	return func(r *record.Record) { r.IsAllDay = true }
}

// Taxonomy sets area, context and type IDs.
func Taxonomy(areaID, contextID, typeID string) RecordOption {
	return func(r *record.Record) {
		r.AreaID = areaID
		r.ContextID = contextID
		r.TypeID = typeID
	}
}

// Record builds a confirmed, soft record owned by "p1" spanning
// [start, end).
func Record(id string, start, end time.Time, opts ...RecordOption) record.Record {
	rec := record.Record{
		ID:        id,
		OwnerID:   "p1",
		Name:      "Record " + id,
		Status:    record.StatusConfirmed,
		Priority:  record.PrioritySoft,
		StartTime: record.TimePtr(start),
		EndTime:   record.TimePtr(end),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&rec)
	}
	return rec
}
