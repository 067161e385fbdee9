package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/agenda/internal/config"
	"github.com/example/agenda/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agenda",
		Short:        "Personal agenda with conflict detection and free-time discovery",
		Long:         "Stores agenda records in SQLite, detects scheduling conflicts and computes free time around records and recurring courses.",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("dsn", "", "SQLite DSN (default: $AGENDA_SQLITE_DSN or file:agenda.db)")
	root.PersistentFlags().String("file", "", "Agenda YAML file with taxonomy and courses (default: $AGENDA_FILE)")
	root.PersistentFlags().String("courses-ics", "", "iCalendar file with recurring courses (default: $AGENDA_COURSES_ICS)")

	root.AddCommand(newServeCmd(), newCheckCmd(), newFreeTimeCmd())
	return root
}

// loadConfig reads the environment and lets persistent flags override it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if dsn, _ := flags.GetString("dsn"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if file, _ := flags.GetString("file"); file != "" {
		cfg.AgendaFile = file
	}
	if ics, _ := flags.GetString("courses-ics"); ics != "" {
		cfg.CoursesICS = ics
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, w)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return logger, nil
}
