package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Manager orchestrates scanning and applying pending migrations.
type Manager struct {
	scanner  *Scanner
	executor *SQLiteExecutor
	logger   *slog.Logger
}

// NewManager creates a Manager. A nil logger falls back to slog.Default.
func NewManager(scanner *Scanner, executor *SQLiteExecutor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		logger:   logger.With("component", "migration"),
	}
}

// Run applies all pending migrations in version order and returns how many ran.
func (m *Manager) Run(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return 0, nil
	}

	for i, migration := range pending {
		m.logger.InfoContext(ctx, "applying migration",
			"version", migration.Version,
			"description", migration.Description,
			"position", i+1,
			"total", len(pending),
		)

		elapsed, err := m.executor.Apply(ctx, migration)
		if err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "error", err)
			return i, NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		m.logger.InfoContext(ctx, "migration applied", "version", migration.Version, "duration", elapsed)
	}

	return len(pending), nil
}

// Pending returns the migrations that have not been applied yet.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.Pending, nil
}

// Status reports the applied and pending migrations after validating the sequence.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.Scan()
	if err != nil {
		return Status{}, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.AppliedVersions(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return Status{}, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedByVersion[a.Version] = a
	}

	status := Status{Applied: applied}
	for _, migration := range available {
		record, ok := appliedByVersion[migration.Version]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			m.logger.WarnContext(ctx, "applied migration changed on disk", "version", migration.Version)
		}
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

// validateSequence rejects gaps in the available versions and applied versions with no file.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	versions := make(map[int]bool, len(available))
	for i, migration := range available {
		v, err := strconv.Atoi(migration.Version)
		if err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "validate sequence",
				fmt.Errorf("%w: version '%s' is not numeric", ErrInvalidVersion, migration.Version))
		}
		if i > 0 {
			prev, _ := strconv.Atoi(available[i-1].Version)
			if v != prev+1 {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, prev+1)
			}
		}
		versions[v] = true
	}

	for _, a := range applied {
		v, err := strconv.Atoi(a.Version)
		if err != nil || !versions[v] {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, a.Version)
		}
	}
	return nil
}
