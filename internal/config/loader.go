package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the agenda service.
type Config struct {
	HTTPPort      int
	SQLiteDSN     string
	TimezoneName  string
	Location      *time.Location
	MinGapMinutes int
	HistoryLimit  int
	LogLevel      string
	LogFormat     string

	// Sealed enables encryption of persisted values with Passphrase.
	Sealed     bool
	Passphrase string

	// AgendaFile and CoursesICS are optional paths to the YAML agenda file and
	// an iCalendar course export.
	AgendaFile string
	CoursesICS string
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields and reports every missing
// or malformed variable at once.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		SQLiteDSN:     "file:agenda.db",
		TimezoneName:  "Local",
		Location:      time.Local,
		MinGapMinutes: 30,
		HistoryLimit:  20,
		LogLevel:      "info",
		LogFormat:     "json",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if portValue := env("AGENDA_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "AGENDA_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := env("AGENDA_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tz := env("AGENDA_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "AGENDA_TIMEZONE")
		} else {
			cfg.TimezoneName = tz
			cfg.Location = loc
		}
	}

	if gapValue := env("AGENDA_MIN_GAP_MINUTES"); gapValue != "" {
		gap, err := strconv.Atoi(gapValue)
		if err != nil || gap <= 0 {
			invalid = append(invalid, "AGENDA_MIN_GAP_MINUTES")
		} else {
			cfg.MinGapMinutes = gap
		}
	}

	if limitValue := env("AGENDA_HISTORY_LIMIT"); limitValue != "" {
		limit, err := strconv.Atoi(limitValue)
		if err != nil || limit < 1 {
			invalid = append(invalid, "AGENDA_HISTORY_LIMIT")
		} else {
			cfg.HistoryLimit = limit
		}
	}

	if level := env("AGENDA_LOG_LEVEL"); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "AGENDA_LOG_LEVEL")
		}
	}

	if format := env("AGENDA_LOG_FORMAT"); format != "" {
		switch strings.ToLower(format) {
		case "json", "text":
			cfg.LogFormat = strings.ToLower(format)
		default:
			invalid = append(invalid, "AGENDA_LOG_FORMAT")
		}
	}

	cfg.Passphrase = env("AGENDA_PASSPHRASE")
	cfg.Sealed = cfg.Passphrase != ""
	if sealedValue := env("AGENDA_SEALED"); sealedValue != "" {
		sealed, err := strconv.ParseBool(sealedValue)
		switch {
		case err != nil:
			invalid = append(invalid, "AGENDA_SEALED")
		case sealed && cfg.Passphrase == "":
			missing = append(missing, "AGENDA_PASSPHRASE")
		case !sealed:
			cfg.Sealed = false
		}
	}

	cfg.AgendaFile = env("AGENDA_FILE")
	cfg.CoursesICS = env("AGENDA_COURSES_ICS")

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
