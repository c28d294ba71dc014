// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files are read from an fs.FS (normally an embed.FS compiled into
// the binary) and follow the naming convention {version}_{description}.sql,
// for example "001_initial_schema.sql". Each file runs inside its own
// transaction and is recorded in the schema_migrations table together with
// its checksum and execution time, so a migration is never applied twice.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewSQLiteExecutor(db), logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
