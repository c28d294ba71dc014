package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"

	"github.com/example/library-ledger/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded schema migrations and returns how many ran.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) (int, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(db),
		logger,
	)
	return manager.Run(ctx)
}

// MigrationStatus reports applied and pending embedded migrations.
func MigrationStatus(ctx context.Context, db *sql.DB, logger *slog.Logger) (migration.Status, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(db),
		logger,
	)
	return manager.Status(ctx)
}
