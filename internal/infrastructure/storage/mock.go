package storage

import (
	"sync"

	"github.com/floorwatch/floorwatch/internal/domain/mapping"
	"github.com/floorwatch/floorwatch/internal/domain/reconciler"
)

// MockRepository is an in-memory implementation of Repository for
// testing. It is seeded with the same defaults as a fresh SQLite store.
type MockRepository struct {
	mu       sync.Mutex
	mappings map[MappingKind]mapping.Table
	matching reconciler.Config
	runs     []*ReconcileRun

	// Hooks for test assertions
	SaveMappingCalled        bool
	SaveMatchingConfigCalled bool
	SaveRunCalled            bool
	LastSavedRun             *ReconcileRun

	// Error injection for testing error paths
	GetMappingErr   error
	SaveMappingErr  error
	GetMatchingErr  error
	SaveMatchingErr error
	SaveRunErr      error
	ListRunsErr     error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		mappings: map[MappingKind]mapping.Table{
			MappingAlarm: defaultChannelToFloor.Clone(),
			MappingSales: defaultShowcaseToFloor.Clone(),
		},
		matching: defaultMatchingConfig,
	}
}

// GetMapping returns the current table for the given kind.
func (m *MockRepository) GetMapping(kind MappingKind) (mapping.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetMappingErr != nil {
		return nil, m.GetMappingErr
	}
	return m.mappings[kind].Clone(), nil
}

// SaveMapping replaces the table for the given kind.
func (m *MockRepository) SaveMapping(kind MappingKind, table mapping.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveMappingCalled = true
	if m.SaveMappingErr != nil {
		return m.SaveMappingErr
	}
	m.mappings[kind] = table.Clone()
	return nil
}

// GetMatchingConfig returns the current tolerance and offset.
func (m *MockRepository) GetMatchingConfig() (reconciler.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetMatchingErr != nil {
		return reconciler.Config{}, m.GetMatchingErr
	}
	return m.matching, nil
}

// SaveMatchingConfig persists both fields.
func (m *MockRepository) SaveMatchingConfig(cfg reconciler.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveMatchingConfigCalled = true
	if m.SaveMatchingErr != nil {
		return m.SaveMatchingErr
	}
	m.matching = cfg
	return nil
}

// SaveRun records a completed run.
func (m *MockRepository) SaveRun(run *ReconcileRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveRunCalled = true
	m.LastSavedRun = run
	if m.SaveRunErr != nil {
		return m.SaveRunErr
	}
	m.runs = append(m.runs, run)
	return nil
}

// ListRuns returns recorded runs, newest first.
func (m *MockRepository) ListRuns(limit int) ([]*ReconcileRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListRunsErr != nil {
		return nil, m.ListRunsErr
	}

	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}

	out := make([]*ReconcileRun, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// Close is a no-op for the mock.
func (m *MockRepository) Close() error {
	return nil
}
