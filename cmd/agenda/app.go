package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/example/agenda/internal/application"
	"github.com/example/agenda/internal/config"
	"github.com/example/agenda/internal/freetime"
	"github.com/example/agenda/internal/persistence"
	"github.com/example/agenda/internal/persistence/sealed"
	"github.com/example/agenda/internal/persistence/sqlite"
	"github.com/example/agenda/internal/recurrence"
	"github.com/example/agenda/internal/store"
)

// app holds the wired agenda components shared by every command.
type app struct {
	storage  *sqlite.Storage
	store    *store.Store
	courses  *recurrence.Catalog
	freeTime *freetime.Engine
	service  *application.AgendaService
	logger   *slog.Logger
}

func bootstrap(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	storage, err := sqlite.OpenWithConfig(sqlite.DefaultConfig(cfg.SQLiteDSN))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("migrate storage: %w", err)
	}

	var kv persistence.KeyValueStore = storage
	if cfg.Sealed {
		sealedStore, err := sealed.New(storage, cfg.Passphrase)
		if err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("seal storage: %w", err)
		}
		kv = sealedStore
	}

	storeOpts := []store.Option{store.WithHistoryLimit(cfg.HistoryLimit), store.WithLogger(logger)}
	var rules []recurrence.Rule
	if cfg.AgendaFile != "" {
		file, err := config.LoadFile(cfg.AgendaFile)
		if err != nil {
			_ = storage.Close()
			return nil, err
		}
		if file.Taxonomy != nil {
			storeOpts = append(storeOpts, store.WithDefaultConfig(*file.Taxonomy))
		}
		if rules, err = file.Rules(); err != nil {
			_ = storage.Close()
			return nil, err
		}
	}
	if cfg.CoursesICS != "" {
		icsRules, err := loadICS(cfg.CoursesICS)
		if err != nil {
			_ = storage.Close()
			return nil, err
		}
		rules = append(rules, icsRules...)
	}

	st := store.New(kv, storeOpts...)
	st.Load(ctx)

	courses := recurrence.NewCatalog(recurrence.NewEngine(cfg.Location), rules, logger)
	engine := freetime.NewEngine(st, courses, freetime.WithLocation(cfg.Location), freetime.WithLogger(logger))
	service := application.NewAgendaServiceWithLogger(st, engine, application.NewULIDGenerator(time.Now), time.Now, logger)
	service.SetDefaultMinGap(cfg.MinGapMinutes)

	logger.Info("agenda ready",
		"dsn", cfg.SQLiteDSN,
		"sealed", cfg.Sealed,
		"timezone", cfg.TimezoneName,
		"course_rules", len(rules),
	)
	return &app{
		storage:  storage,
		store:    st,
		courses:  courses,
		freeTime: engine,
		service:  service,
		logger:   logger,
	}, nil
}

func loadICS(path string) ([]recurrence.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open courses calendar: %w", err)
	}
	defer f.Close()

	rules, err := recurrence.ParseICS(f)
	if err != nil && !errors.Is(err, recurrence.ErrEmptyCalendar) {
		return nil, fmt.Errorf("parse courses calendar %s: %w", path, err)
	}
	return rules, nil
}

// Close detaches the service, waits for pending writes and closes storage.
func (a *app) Close() error {
	a.service.Close()
	a.store.Wait()
	return a.storage.Close()
}
