package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/agenda/internal/record"
	"github.com/example/agenda/internal/recurrence"
)

// AgendaFile is the YAML document describing the taxonomy and the recurring
// course schedule of an agenda.
type AgendaFile struct {
	// Taxonomy, when present, replaces the default areas, contexts and types.
	Taxonomy *record.Config `yaml:"taxonomy"`
	Courses  []Course       `yaml:"courses"`
}

// Course is one recurring commitment, such as a university class.
//
//	courses:
//	  - id: algebra
//	    name: Linear Algebra
//	    weekdays: [monday, thursday]
//	    starts_on: 2024-04-01T09:00:00+09:00
//	    duration: 90m
type Course struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Frequency string        `yaml:"frequency"`
	Weekdays  []string      `yaml:"weekdays"`
	StartsOn  time.Time     `yaml:"starts_on"`
	EndsOn    *time.Time    `yaml:"ends_on"`
	Duration  time.Duration `yaml:"duration"`
	RRule     string        `yaml:"rrule"`
}

// LoadFile reads and decodes the agenda file at path. Unknown fields are
// rejected. An empty file yields a zero AgendaFile.
func LoadFile(path string) (AgendaFile, error) {
	if strings.TrimSpace(path) == "" {
		return AgendaFile{}, errors.New("config: agenda file path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return AgendaFile{}, fmt.Errorf("config: read agenda file: %w", err)
	}

	var file AgendaFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return AgendaFile{}, fmt.Errorf("config: decode agenda file %s: %w", path, err)
	}
	return file, nil
}

// Rules converts the configured courses into recurrence rules.
func (f AgendaFile) Rules() ([]recurrence.Rule, error) {
	rules := make([]recurrence.Rule, 0, len(f.Courses))
	for i, course := range f.Courses {
		rule, err := course.rule()
		if err != nil {
			return nil, fmt.Errorf("config: courses[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (c Course) rule() (recurrence.Rule, error) {
	if strings.TrimSpace(c.ID) == "" {
		return recurrence.Rule{}, errors.New("id is required")
	}
	if c.StartsOn.IsZero() {
		return recurrence.Rule{}, fmt.Errorf("course %s: starts_on is required", c.ID)
	}
	if c.Duration <= 0 {
		return recurrence.Rule{}, fmt.Errorf("course %s: %w", c.ID, recurrence.ErrInvalidDuration)
	}

	rule := recurrence.Rule{
		ID:       c.ID,
		Name:     c.Name,
		StartsOn: c.StartsOn,
		EndsOn:   c.EndsOn,
		Duration: c.Duration,
		RRule:    strings.TrimSpace(c.RRule),
	}
	for _, name := range c.Weekdays {
		day, err := recurrence.ParseWeekday(name)
		if err != nil {
			return recurrence.Rule{}, fmt.Errorf("course %s: %w", c.ID, err)
		}
		rule.Weekdays = append(rule.Weekdays, day)
	}

	switch strings.ToLower(strings.TrimSpace(c.Frequency)) {
	case "daily":
		rule.Frequency = recurrence.FrequencyDaily
	case "weekly", "":
		rule.Frequency = recurrence.FrequencyWeekly
	default:
		if rule.RRule == "" {
			return recurrence.Rule{}, fmt.Errorf("course %s: %w: %q", c.ID, recurrence.ErrInvalidFrequency, c.Frequency)
		}
	}
	return rule, nil
}
