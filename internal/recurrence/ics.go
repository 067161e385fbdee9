package recurrence

import (
	"errors"
	"fmt"
	"io"
	"strings"

	ical "github.com/arran4/golang-ical"
)

// ErrEmptyCalendar indicates the ICS payload held no usable events.
var ErrEmptyCalendar = errors.New("recurrence: calendar has no usable events")

// ParseICS converts the VEVENTs of an iCalendar payload into course rules.
// Events without an RRULE become single occurrences. Events missing a UID
// or a positive duration are skipped.
func ParseICS(r io.Reader) ([]Rule, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("recurrence: parse calendar: %w", err)
	}

	rules := make([]Rule, 0)
	for _, ev := range cal.Events() {
		uid := ev.GetProperty(ical.ComponentPropertyUniqueId)
		if uid == nil || strings.TrimSpace(uid.Value) == "" {
			continue
		}
		start, err := ev.GetStartAt()
		if err != nil {
			continue
		}
		end, err := ev.GetEndAt()
		if err != nil || !end.After(start) {
			continue
		}

		rule := Rule{
			ID:       uid.Value,
			StartsOn: start,
			Duration: end.Sub(start),
			RRule:    "FREQ=DAILY;COUNT=1",
		}
		if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil {
			rule.Name = p.Value
		}
		if p := ev.GetProperty(ical.ComponentPropertyRrule); p != nil && strings.TrimSpace(p.Value) != "" {
			rule.RRule = p.Value
		}
		rules = append(rules, rule)
	}

	if len(rules) == 0 {
		return nil, ErrEmptyCalendar
	}
	return rules, nil
}
