package storage

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/floorwatch/floorwatch/internal/domain/mapping"
	"github.com/floorwatch/floorwatch/internal/domain/reconciler"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "seed_default_settings",
		Up:      migration002SeedDefaultSettings,
	},
}

// Default settings written on first run. The mapping tables are the
// deployment's known channel and showcase assignments; both are fully
// user-editable afterwards.
var (
	defaultChannelToFloor = mapping.Table{
		"1": "22", "2": "23", "3": "20", "4": "20", "5": "26",
		"6": "21", "7": "19", "8": "25", "9": "24", "10": "19",
		"11": "23", "12": "24", "13": "26",
	}

	defaultShowcaseToFloor = mapping.Table{
		"667": "19", "668": "20", "669": "21", "670": "22", "671": "23",
		"672": "24", "673": "25", "674": "26", "854": "20",
	}

	defaultMatchingConfig = reconciler.DefaultConfig()
)

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	// Ensure migrations table exists
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Run pending migrations
	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		// Run migration in transaction
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		// Execute migration
		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		// Record migration
		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS location_mappings (
			kind TEXT NOT NULL,
			raw_id TEXT NOT NULL,
			floor TEXT NOT NULL,
			PRIMARY KEY (kind, raw_id)
		);

		CREATE TABLE IF NOT EXISTS matching_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			tolerance_seconds INTEGER NOT NULL,
			offset_seconds INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS reconcile_runs (
			id TEXT PRIMARY KEY,
			run_at DATETIME NOT NULL,
			alarm_date TEXT NOT NULL,
			sales_date TEXT NOT NULL,
			tolerance_seconds INTEGER NOT NULL,
			offset_seconds INTEGER NOT NULL,
			alarm_events INTEGER NOT NULL,
			sales_events INTEGER NOT NULL,
			unmatched_events INTEGER NOT NULL,
			alarm_dropped INTEGER NOT NULL,
			sales_dropped INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reconcile_runs_run_at ON reconcile_runs(run_at);
	`)
	return err
}

func migration002SeedDefaultSettings(tx *sql.Tx) error {
	seed := func(kind MappingKind, table mapping.Table) error {
		for rawID, floor := range table {
			_, err := tx.Exec(`
				INSERT OR IGNORE INTO location_mappings (kind, raw_id, floor) VALUES (?, ?, ?)
			`, string(kind), rawID, floor)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := seed(MappingAlarm, defaultChannelToFloor); err != nil {
		return err
	}
	if err := seed(MappingSales, defaultShowcaseToFloor); err != nil {
		return err
	}

	_, err := tx.Exec(`
		INSERT OR IGNORE INTO matching_config (id, tolerance_seconds, offset_seconds)
		VALUES (1, ?, ?)
	`, defaultMatchingConfig.ToleranceSeconds, defaultMatchingConfig.OffsetSeconds)
	return err
}
