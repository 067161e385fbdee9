package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/agenda/internal/recurrence"
)

var agendaEnv = []string{
	"AGENDA_HTTP_PORT",
	"AGENDA_SQLITE_DSN",
	"AGENDA_TIMEZONE",
	"AGENDA_MIN_GAP_MINUTES",
	"AGENDA_HISTORY_LIMIT",
	"AGENDA_LOG_LEVEL",
	"AGENDA_LOG_FORMAT",
	"AGENDA_PASSPHRASE",
	"AGENDA_SEALED",
	"AGENDA_FILE",
	"AGENDA_COURSES_ICS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range agendaEnv {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:agenda.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.Location != time.Local || cfg.MinGapMinutes != 30 || cfg.HistoryLimit != 20 {
			t.Fatalf("unexpected defaults %+v", cfg)
		}
		if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
			t.Fatalf("unexpected log defaults %q/%q", cfg.LogLevel, cfg.LogFormat)
		}
		if cfg.Sealed {
			t.Fatal("expected sealing to be off without a passphrase")
		}
	})

	t.Run("parses every variable", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AGENDA_HTTP_PORT", "9090")
		t.Setenv("AGENDA_SQLITE_DSN", "file:/tmp/agenda.db")
		t.Setenv("AGENDA_TIMEZONE", "UTC")
		t.Setenv("AGENDA_MIN_GAP_MINUTES", "45")
		t.Setenv("AGENDA_HISTORY_LIMIT", "5")
		t.Setenv("AGENDA_LOG_LEVEL", "DEBUG")
		t.Setenv("AGENDA_LOG_FORMAT", "text")
		t.Setenv("AGENDA_PASSPHRASE", "correct horse")
		t.Setenv("AGENDA_FILE", "agenda.yaml")
		t.Setenv("AGENDA_COURSES_ICS", "courses.ics")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "file:/tmp/agenda.db" {
			t.Fatalf("unexpected transport config %+v", cfg)
		}
		if cfg.Location != time.UTC || cfg.TimezoneName != "UTC" {
			t.Fatalf("expected UTC location, got %v", cfg.Location)
		}
		if cfg.MinGapMinutes != 45 || cfg.HistoryLimit != 5 {
			t.Fatalf("unexpected numeric fields %+v", cfg)
		}
		if cfg.LogLevel != "debug" || cfg.LogFormat != "text" {
			t.Fatalf("unexpected log settings %q/%q", cfg.LogLevel, cfg.LogFormat)
		}
		if !cfg.Sealed || cfg.Passphrase != "correct horse" {
			t.Fatal("expected passphrase to enable sealing")
		}
		if cfg.AgendaFile != "agenda.yaml" || cfg.CoursesICS != "courses.ics" {
			t.Fatalf("unexpected file paths %q/%q", cfg.AgendaFile, cfg.CoursesICS)
		}
	})

	t.Run("errors when sealing lacks a passphrase", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AGENDA_SEALED", "true")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required environment variables are not set: AGENDA_PASSPHRASE"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("sealing can be disabled explicitly", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AGENDA_PASSPHRASE", "secret")
		t.Setenv("AGENDA_SEALED", "false")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Sealed {
			t.Fatal("expected AGENDA_SEALED=false to win")
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AGENDA_HTTP_PORT", "http")
		t.Setenv("AGENDA_TIMEZONE", "Mars/Olympus")
		t.Setenv("AGENDA_MIN_GAP_MINUTES", "0")
		t.Setenv("AGENDA_HISTORY_LIMIT", "-1")
		t.Setenv("AGENDA_LOG_LEVEL", "loud")
		t.Setenv("AGENDA_LOG_FORMAT", "xml")

		_, err := Load()
		if err == nil {
			t.Fatal("expected invalid values to be rejected")
		}
		for _, key := range []string{"AGENDA_HTTP_PORT", "AGENDA_TIMEZONE", "AGENDA_MIN_GAP_MINUTES", "AGENDA_HISTORY_LIMIT", "AGENDA_LOG_LEVEL", "AGENDA_LOG_FORMAT"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %q", key, err.Error())
			}
		}
	})
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agenda.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write agenda file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("decodes taxonomy and courses", func(t *testing.T) {
		path := writeFile(t, `
taxonomy:
  areas:
    - id: study
      name: Study
      color: "#ff9800"
  contexts:
    - id: campus
      name: Campus
  types:
    - id: lecture
      name: Lecture
courses:
  - id: algebra
    name: Linear Algebra
    weekdays: [monday, Thu]
    starts_on: 2024-03-04T09:00:00Z
    ends_on: 2024-06-28T00:00:00Z
    duration: 90m
  - id: lab
    name: Lab
    starts_on: 2024-03-05T14:00:00Z
    duration: 2h
    rrule: FREQ=WEEKLY;INTERVAL=2
`)

		file, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile returned error: %v", err)
		}
		if file.Taxonomy == nil || !file.Taxonomy.HasArea("study") || !file.Taxonomy.HasType("lecture") {
			t.Fatalf("unexpected taxonomy %+v", file.Taxonomy)
		}

		rules, err := file.Rules()
		if err != nil {
			t.Fatalf("Rules returned error: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("expected two rules, got %d", len(rules))
		}
		algebra := rules[0]
		if algebra.Frequency != recurrence.FrequencyWeekly || algebra.Duration != 90*time.Minute {
			t.Fatalf("unexpected rule %+v", algebra)
		}
		if len(algebra.Weekdays) != 2 || algebra.Weekdays[0] != time.Monday || algebra.Weekdays[1] != time.Thursday {
			t.Fatalf("unexpected weekdays %v", algebra.Weekdays)
		}
		if algebra.EndsOn == nil || algebra.EndsOn.Month() != time.June {
			t.Fatalf("unexpected end %v", algebra.EndsOn)
		}
		if rules[1].RRule != "FREQ=WEEKLY;INTERVAL=2" {
			t.Fatalf("expected raw rule to be kept, got %q", rules[1].RRule)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		file, err := LoadFile(writeFile(t, ""))
		if err != nil {
			t.Fatalf("LoadFile returned error: %v", err)
		}
		if file.Taxonomy != nil || len(file.Courses) != 0 {
			t.Fatalf("expected zero file, got %+v", file)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		if _, err := LoadFile(writeFile(t, "rooms: []\n")); err == nil {
			t.Fatal("expected unknown field to be rejected")
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := LoadFile(""); err == nil {
			t.Fatal("expected empty path to fail")
		}
		if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Fatal("expected missing file to fail")
		}
	})

	t.Run("invalid courses", func(t *testing.T) {
		cases := map[string]Course{
			"missing id":    {StartsOn: time.Now(), Duration: time.Hour},
			"missing start": {ID: "c", Duration: time.Hour},
			"zero duration": {ID: "c", StartsOn: time.Now()},
			"bad weekday":   {ID: "c", StartsOn: time.Now(), Duration: time.Hour, Weekdays: []string{"someday"}},
			"bad frequency": {ID: "c", StartsOn: time.Now(), Duration: time.Hour, Frequency: "hourly"},
		}
		for name, course := range cases {
			t.Run(name, func(t *testing.T) {
				if _, err := (AgendaFile{Courses: []Course{course}}).Rules(); err == nil {
					t.Fatal("expected course to be rejected")
				}
			})
		}
	})
}
