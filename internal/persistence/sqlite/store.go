// Package sqlite persists the ledger snapshot and member sessions in a SQLite
// database through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/library-ledger/internal/persistence/sqlite/migration"
)

// Store bundles the snapshot and session stores that share one connection pool.
type Store struct {
	pool     *ConnectionPool
	Snapshot *SnapshotStore
	Sessions *SessionRepository
}

// Open connects to the database, applies pending migrations and returns a Store.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	if _, err := Migrate(ctx, pool.DB(), logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &Store{
		pool:     pool,
		Snapshot: NewSnapshotStore(pool),
		Sessions: NewSessionRepository(pool),
	}, nil
}

// Pool exposes the shared connection pool.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.pool.Close()
}
