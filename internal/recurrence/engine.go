// Package recurrence expands weekly course schedules into the concrete busy
// intervals of a given day.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily generates occurrences for each day, optionally filtered by weekday.
	FrequencyDaily
	// FrequencyWeekly generates occurrences for the selected weekdays.
	FrequencyWeekly
)

// Rule describes a recurring course or commitment. When RRule is set it takes
// precedence over Frequency and Weekdays.
type Rule struct {
	ID        string
	Name      string
	Frequency Frequency
	Weekdays  []time.Weekday
	// StartsOn is the first occurrence; its clock time is reused by every
	// occurrence.
	StartsOn time.Time
	EndsOn   *time.Time
	Duration time.Duration
	RRule    string
}

// Occurrence represents a generated instance of a recurrence rule.
type Occurrence struct {
	RuleID string
	Name   string
	Start  time.Time
	End    time.Time
}

var (
	// ErrInvalidFrequency indicates the recurrence frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidDuration indicates the occurrence duration is not positive.
	ErrInvalidDuration = errors.New("recurrence: duration must be positive")
	// ErrInvalidWeekday indicates a weekday name could not be parsed.
	ErrInvalidWeekday = errors.New("recurrence: invalid weekday")
)

// Engine expands recurrence rules into occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that normalizes results to the provided
// location. If loc is nil, time.Local is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{location: loc}
}

// GenerateOccurrences returns the occurrences of rule that intersect
// [rangeStart, rangeEnd), in chronological order.
func (e *Engine) GenerateOccurrences(rule Rule, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	if rule.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if !rangeEnd.After(rangeStart) {
		return nil, nil
	}

	loc := e.location
	if loc == nil {
		loc = time.Local
	}

	r, err := buildRRule(rule, loc)
	if err != nil {
		return nil, err
	}

	// Start one duration early so occurrences that began before the range but
	// still run into it are included.
	from := rangeStart.In(loc).Add(-rule.Duration)
	starts := r.Between(from, rangeEnd.In(loc), true)

	occurrences := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		start = start.In(loc)
		end := start.Add(rule.Duration)
		if !start.Before(rangeEnd) || !end.After(rangeStart) {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			RuleID: rule.ID,
			Name:   rule.Name,
			Start:  start,
			End:    end,
		})
	}
	return occurrences, nil
}

func buildRRule(rule Rule, loc *time.Location) (*rrule.RRule, error) {
	dtstart := rule.StartsOn.In(loc)

	if raw := strings.TrimSpace(rule.RRule); raw != "" {
		opt, err := rrule.StrToROption(strings.TrimPrefix(raw, "RRULE:"))
		if err != nil {
			return nil, fmt.Errorf("recurrence: parse rule %s: %w", rule.ID, err)
		}
		opt.Dtstart = dtstart
		if opt.Until.IsZero() && opt.Count == 0 && rule.EndsOn != nil {
			opt.Until = rule.EndsOn.In(loc)
		}
		return rrule.NewRRule(*opt)
	}

	opt := rrule.ROption{Dtstart: dtstart}
	switch rule.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	default:
		return nil, ErrInvalidFrequency
	}
	for _, day := range uniqueWeekdays(rule.Weekdays) {
		opt.Byweekday = append(opt.Byweekday, toRRuleWeekday(day))
	}
	if rule.EndsOn != nil {
		opt.Until = rule.EndsOn.In(loc)
	}
	return rrule.NewRRule(opt)
}

// ParseWeekday maps an English weekday name or two-letter iCalendar code to
// a time.Weekday.
func ParseWeekday(value string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sunday", "sun", "su":
		return time.Sunday, nil
	case "monday", "mon", "mo":
		return time.Monday, nil
	case "tuesday", "tue", "tu":
		return time.Tuesday, nil
	case "wednesday", "wed", "we":
		return time.Wednesday, nil
	case "thursday", "thu", "th":
		return time.Thursday, nil
	case "friday", "fri", "fr":
		return time.Friday, nil
	case "saturday", "sat", "sa":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
}

func toRRuleWeekday(day time.Weekday) rrule.Weekday {
	switch day {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

func uniqueWeekdays(days []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]struct{}, len(days))
	result := make([]time.Weekday, 0, len(days))
	for _, day := range days {
		if day < time.Sunday || day > time.Saturday {
			continue
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		result = append(result, day)
	}
	return result
}
