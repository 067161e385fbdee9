package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	httptransport "github.com/example/agenda/internal/http"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agenda HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP port (default: $AGENDA_HTTP_PORT or 8080)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.HTTPPort = port
	}
	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start agenda", "error", err)
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	jobs, err := scheduleMidnightInvalidation(a, cfg.Location)
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newHandler(a),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("agenda API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	logger.Info("agenda API stopped")
	return nil
}

func newHandler(a *app) http.Handler {
	logger := a.logger
	return httptransport.NewRouter(httptransport.RouterConfig{
		Records:  httptransport.NewRecordHandler(a.service, logger),
		FreeTime: httptransport.NewFreeTimeHandler(a.service, logger),
		History:  httptransport.NewHistoryHandler(a.service, logger),
		Config:   httptransport.NewConfigHandler(a.service, logger),
		Ready:    a.store.Loaded,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})
}

// scheduleMidnightInvalidation drops cached free time when the day rolls
// over in loc.
func scheduleMidnightInvalidation(a *app, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc("@midnight", func() {
		a.freeTime.InvalidateAll()
		a.logger.Info("free time cache reset", slog.Time("at", time.Now().In(loc)))
	}); err != nil {
		return nil, fmt.Errorf("schedule cache reset: %w", err)
	}
	return c, nil
}
