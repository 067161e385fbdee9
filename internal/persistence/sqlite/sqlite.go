// Package sqlite implements persistence.KeyValueStore on a SQLite database
// through modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/example/agenda/internal/persistence"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// Storage is a SQLite backed key-value store.
type Storage struct {
	db     *sql.DB
	retry  *RetryHelper
	mapper *ErrorMapper
	now    func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the database at dsn using DefaultConfig.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(DefaultConfig(dsn))
}

// OpenWithConfig connects using cfg.
func OpenWithConfig(cfg Config) (*Storage, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{
		db:     db,
		retry:  NewRetryHelper(cfg.Retry),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}, nil
}

// Close releases the database handle. It is safe to call more than once.
func (s *Storage) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// Ping tests the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.mapper.MapError(s.db.PingContext(ctx))
}

// Migrate creates the key-value table when missing.
func (s *Storage) Migrate(ctx context.Context) error {
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, schema)
		return err
	})
}

// Get implements persistence.KeyValueStore.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	if err := persistence.ValidateKey(key); err != nil {
		return "", err
	}

	var value string
	err := s.retry.WithRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set implements persistence.KeyValueStore.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := persistence.ValidateKey(key); err != nil {
		return err
	}

	updatedAt := s.now().UTC().Format(time.RFC3339Nano)
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, updatedAt,
		)
		return err
	})
}

// Remove implements persistence.KeyValueStore.
func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return err
	})
}

// Clear implements persistence.KeyValueStore.
func (s *Storage) Clear(ctx context.Context) error {
	return s.retry.WithRetry(ctx, func() error {
		return withTransaction(ctx, s.db, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DELETE FROM kv`)
			return err
		})
	})
}

// Entry is a stored key with its last write time.
type Entry struct {
	Key       string
	UpdatedAt time.Time
}

// Entries lists the stored keys ordered by key.
func (s *Storage) Entries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.retry.WithRetry(ctx, func() error {
		entries = entries[:0]
		rows, err := s.db.QueryContext(ctx, `SELECT key, updated_at FROM kv ORDER BY key`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				entry Entry
				raw   string
			)
			if err := rows.Scan(&entry.Key, &raw); err != nil {
				return err
			}
			entry.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return fmt.Errorf("sqlite: parse updated_at for %s: %w", entry.Key, err)
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
