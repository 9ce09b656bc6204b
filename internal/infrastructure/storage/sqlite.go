package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/floorwatch/floorwatch/internal/domain/mapping"
	"github.com/floorwatch/floorwatch/internal/domain/reconciler"
)

// Storage provides SQLite database access for the settings store.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database.
// First run seeds the default mappings and matching parameters.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// GetMapping returns the current table for the given kind.
func (s *Storage) GetMapping(kind MappingKind) (mapping.Table, error) {
	rows, err := s.db.Query(`
		SELECT raw_id, floor FROM location_mappings WHERE kind = ?
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping %s: %w", kind, err)
	}
	defer rows.Close()

	table := make(mapping.Table)
	for rows.Next() {
		var rawID, floor string
		if err := rows.Scan(&rawID, &floor); err != nil {
			return nil, err
		}
		table[rawID] = floor
	}

	return table, rows.Err()
}

// SaveMapping replaces the table for the given kind wholesale.
func (s *Storage) SaveMapping(kind MappingKind, table mapping.Table) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM location_mappings WHERE kind = ?`, string(kind)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear mapping %s: %w", kind, err)
	}

	for rawID, floor := range table {
		_, err := tx.Exec(`
			INSERT INTO location_mappings (kind, raw_id, floor) VALUES (?, ?, ?)
		`, string(kind), rawID, floor)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save mapping %s: %w", kind, err)
		}
	}

	return tx.Commit()
}

// GetMatchingConfig returns the current tolerance and offset.
func (s *Storage) GetMatchingConfig() (reconciler.Config, error) {
	var cfg reconciler.Config
	err := s.db.QueryRow(`
		SELECT tolerance_seconds, offset_seconds FROM matching_config WHERE id = 1
	`).Scan(&cfg.ToleranceSeconds, &cfg.OffsetSeconds)
	if err != nil {
		return reconciler.Config{}, fmt.Errorf("failed to load matching config: %w", err)
	}
	return cfg, nil
}

// SaveMatchingConfig persists both fields synchronously.
func (s *Storage) SaveMatchingConfig(cfg reconciler.Config) error {
	_, err := s.db.Exec(`
		UPDATE matching_config SET tolerance_seconds = ?, offset_seconds = ? WHERE id = 1
	`, cfg.ToleranceSeconds, cfg.OffsetSeconds)
	if err != nil {
		return fmt.Errorf("failed to save matching config: %w", err)
	}
	return nil
}

// SaveRun records a completed reconciliation run.
func (s *Storage) SaveRun(run *ReconcileRun) error {
	_, err := s.db.Exec(`
		INSERT INTO reconcile_runs
		(id, run_at, alarm_date, sales_date, tolerance_seconds, offset_seconds,
		 alarm_events, sales_events, unmatched_events, alarm_dropped, sales_dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.RunAt,
		run.AlarmDate,
		run.SalesDate,
		run.ToleranceSeconds,
		run.OffsetSeconds,
		run.AlarmEvents,
		run.SalesEvents,
		run.UnmatchedEvents,
		run.AlarmDropped,
		run.SalesDropped,
	)
	return err
}

// ListRuns returns the most recent runs, newest first.
func (s *Storage) ListRuns(limit int) ([]*ReconcileRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, run_at, alarm_date, sales_date, tolerance_seconds, offset_seconds,
		       alarm_events, sales_events, unmatched_events, alarm_dropped, sales_dropped
		FROM reconcile_runs ORDER BY run_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ReconcileRun
	for rows.Next() {
		run := &ReconcileRun{}
		err := rows.Scan(
			&run.ID,
			&run.RunAt,
			&run.AlarmDate,
			&run.SalesDate,
			&run.ToleranceSeconds,
			&run.OffsetSeconds,
			&run.AlarmEvents,
			&run.SalesEvents,
			&run.UnmatchedEvents,
			&run.AlarmDropped,
			&run.SalesDropped,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
