package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/agenda/internal/persistence/sqlite"
)

// NewSQLiteStorage opens a migrated key-value store in a temporary
// directory. The storage is closed when the test finishes.
func NewSQLiteStorage(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "agenda.db")
	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return storage
}
