package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/agenda/internal/persistence"
)

// Config holds SQLite connection settings.
type Config struct {
	// DSN is the database file path or file: URI.
	DSN string
	// BusyTimeout sets how long SQLite waits on a lock before failing.
	BusyTimeout time.Duration
	// JournalMode sets the SQLite journal mode (WAL, DELETE, ...).
	JournalMode string
	// Synchronous sets the synchronous mode (FULL, NORMAL, OFF).
	Synchronous string
	// Retry configures retries of locked or busy operations.
	Retry RetryConfig
}

// DefaultConfig returns the settings used by Open.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:         dsn,
		BusyTimeout: 5 * time.Second,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		Retry:       DefaultRetryConfig(),
	}
}

// connectionString appends the pragmas to the DSN so every pooled
// connection is configured the same way.
func (c Config) connectionString() string {
	params := url.Values{}
	if c.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	}
	if c.JournalMode != "" && !isMemoryDSN(c.DSN) {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", c.JournalMode))
	}
	if c.Synchronous != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.Synchronous))
	}
	if len(params) == 0 {
		return c.DSN
	}
	sep := "?"
	if strings.Contains(c.DSN, "?") {
		sep = "&"
	}
	return c.DSN + sep + params.Encode()
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func openDB(cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("sqlite: dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.connectionString())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// A single connection keeps writes serialized and lets :memory:
	// databases survive between statements.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping database: %w", err)
	}
	return db, nil
}

// TransactionFunc represents a function that executes within a transaction.
type TransactionFunc func(tx *sql.Tx) error

// withTransaction runs fn in a transaction, rolling back when fn fails or
// panics.
func withTransaction(ctx context.Context, db *sql.DB, fn TransactionFunc) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit transaction: %w", err)
	}
	return nil
}

// ErrorMapper maps SQLite errors to persistence errors.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError maps SQLite-specific errors to persistence errors.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", persistence.ErrClosed, err)
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", persistence.ErrLocked, err)
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database is busy") {
		return fmt.Errorf("%w: %v", persistence.ErrLocked, err)
	}
	if strings.Contains(msg, "sql: database is closed") {
		return fmt.Errorf("%w: %v", persistence.ErrClosed, err)
	}

	return err
}

// RetryConfig configures retry behavior for database operations.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the retry configuration used by Open.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries operations that fail with transient lock errors.
type RetryHelper struct {
	config RetryConfig
	mapper *ErrorMapper
}

// NewRetryHelper creates a new retry helper.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{
		config: config,
		mapper: NewErrorMapper(),
	}
}

// RetryableFunc represents a function that can be retried.
type RetryableFunc func() error

// WithRetry executes fn, retrying with exponential backoff while it fails
// with persistence.ErrLocked. Other errors are returned mapped.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn RetryableFunc) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
				if delay > rh.config.MaxDelay {
					delay = rh.config.MaxDelay
				}
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = rh.mapper.MapError(err)
		if !errors.Is(lastErr, persistence.ErrLocked) {
			return lastErr
		}
	}

	return fmt.Errorf("sqlite: operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}
