package storage

import (
	"github.com/floorwatch/floorwatch/internal/domain/mapping"
	"github.com/floorwatch/floorwatch/internal/domain/reconciler"
)

// Repository defines the complete settings-store interface.
// This interface allows swapping implementations and makes testing with
// mocks straightforward.
type Repository interface {
	MappingRepository
	MatchingRepository
	RunRepository
	Close() error
}

// MappingRepository persists the two user-editable location tables.
type MappingRepository interface {
	// GetMapping returns the current table for the given kind.
	GetMapping(kind MappingKind) (mapping.Table, error)

	// SaveMapping replaces the table for the given kind wholesale.
	SaveMapping(kind MappingKind, table mapping.Table) error
}

// MatchingRepository persists the user-adjustable matching parameters.
type MatchingRepository interface {
	// GetMatchingConfig returns the current tolerance and offset.
	GetMatchingConfig() (reconciler.Config, error)

	// SaveMatchingConfig persists both fields synchronously.
	SaveMatchingConfig(cfg reconciler.Config) error
}

// RunRepository tracks completed reconciliation runs.
type RunRepository interface {
	// SaveRun records a completed run.
	SaveRun(run *ReconcileRun) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*ReconcileRun, error)
}
