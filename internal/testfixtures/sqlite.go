package testfixtures

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/library-ledger/internal/persistence/sqlite"
	"github.com/example/library-ledger/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides a migrated SQLite store in a temporary directory for
// integration-style tests.
type SQLiteHarness struct {
	Store *sqlite.Store
	DSN   string

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dsn := "file:" + filepath.Join(tb.TempDir(), "ledger.db")
	store, err := sqlite.Open(context.Background(), migration.DefaultSQLiteConfig(dsn), slog.New(slog.DiscardHandler))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		DSN:   dsn,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
