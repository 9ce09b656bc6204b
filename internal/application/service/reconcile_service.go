// Package service orchestrates the reconciliation pipeline: loading the
// two sources, checking preconditions, running the engine against the
// live matching configuration, and managing the confirm/reset protocol
// around a ready result.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/floorwatch/floorwatch/internal/domain/alarmlog"
	"github.com/floorwatch/floorwatch/internal/domain/event"
	"github.com/floorwatch/floorwatch/internal/domain/mapping"
	"github.com/floorwatch/floorwatch/internal/domain/reconciler"
	"github.com/floorwatch/floorwatch/internal/domain/saleslog"
	"github.com/floorwatch/floorwatch/internal/infrastructure/storage"
	"github.com/floorwatch/floorwatch/internal/observability"
)

// Precondition failures. Each is a distinct condition the caller can
// surface separately; none of them is a generic error.
var (
	ErrAlarmSourceMissing = errors.New("alarm source not loaded")
	ErrSalesSourceMissing = errors.New("sales source not loaded")
	ErrDatesMismatch      = errors.New("source dates do not match")
	ErrResultReady        = errors.New("previous result not yet cleared")
	ErrNegativeTolerance  = errors.New("tolerance seconds must not be negative")
)

// Result is the outcome of one reconciliation run. Events are already
// in display order (reversed, then stable-sorted by floor ascending).
// Superseded wholesale by the next run.
type Result struct {
	RunID        string
	RunAt        time.Time
	Events       []event.Event
	Floors       []string
	AlarmDate    string
	SalesDate    string
	Config       reconciler.Config
	AlarmEvents  int
	SalesEvents  int
	AlarmDropped int
	SalesDropped int
}

// State is a snapshot of what has been loaded so far.
type State struct {
	AlarmLoaded bool
	SalesLoaded bool
	AlarmDate   string
	SalesDate   string
	DatesMatch  bool
	ResultReady bool
}

// ReconcileService owns the transient pipeline state. All public
// methods are safe for concurrent use; configuration mutation and
// reconciliation are mutually exclusive critical sections, so a
// reconcile never sees a torn config update.
type ReconcileService struct {
	repo    storage.Repository
	logger  *slog.Logger
	metrics *observability.Metrics

	mu          sync.Mutex
	matching    reconciler.Config
	alarmFloors mapping.Table
	salesFloors mapping.Table
	alarm       *event.ExtractionResult
	sales       *event.ExtractionResult
	result      *Result
}

// NewReconcileService loads current settings from the repository and
// returns a service with no sources loaded. metrics may be nil.
func NewReconcileService(repo storage.Repository, logger *slog.Logger, metrics *observability.Metrics) (*ReconcileService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	matching, err := repo.GetMatchingConfig()
	if err != nil {
		return nil, fmt.Errorf("load matching config: %w", err)
	}
	alarmFloors, err := repo.GetMapping(storage.MappingAlarm)
	if err != nil {
		return nil, fmt.Errorf("load alarm mapping: %w", err)
	}
	salesFloors, err := repo.GetMapping(storage.MappingSales)
	if err != nil {
		return nil, fmt.Errorf("load sales mapping: %w", err)
	}

	return &ReconcileService{
		repo:        repo,
		logger:      logger,
		metrics:     metrics,
		matching:    matching,
		alarmFloors: alarmFloors,
		salesFloors: salesFloors,
	}, nil
}

// LoadAlarmSource parses the alarm export and stores it as the current
// alarm side. Loading a source invalidates any ready result.
func (s *ReconcileService) LoadAlarmSource(data []byte) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parsed := alarmlog.Parse(data, s.alarmFloors)
	s.alarm = &parsed
	s.result = nil

	s.metrics.SourceLoaded(observability.SourceAlarm, parsed.Dropped)
	s.logger.Info("alarm source loaded",
		"events", len(parsed.Events),
		"dropped", parsed.Dropped,
		"date", parsed.SourceDate)
	s.checkDatesLocked()

	return s.stateLocked(), nil
}

// LoadSalesSource parses the sales spreadsheet and stores it as the
// current sales side. An unreadable workbook leaves prior state intact.
func (s *ReconcileService) LoadSalesSource(r io.Reader) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parsed, err := saleslog.Parse(r, s.salesFloors)
	if err != nil {
		return s.stateLocked(), err
	}
	s.sales = &parsed
	s.result = nil

	s.metrics.SourceLoaded(observability.SourceSales, parsed.Dropped)
	s.logger.Info("sales source loaded",
		"events", len(parsed.Events),
		"dropped", parsed.Dropped,
		"date", parsed.SourceDate)
	s.checkDatesLocked()

	return s.stateLocked(), nil
}

// checkDatesLocked re-evaluates date consistency whenever either source
// changes, so a mismatch is surfaced immediately, not only when a
// reconcile is attempted.
func (s *ReconcileService) checkDatesLocked() {
	if s.alarm == nil || s.sales == nil {
		return
	}
	if !reconciler.DatesMatch(s.alarm.SourceDate, s.sales.SourceDate) {
		s.logger.Error("source dates do not match",
			"alarm_date", s.alarm.SourceDate,
			"sales_date", s.sales.SourceDate)
	}
}

// State returns a snapshot of the current pipeline state. DatesMatch is
// derived on demand from the two stored source dates, never cached.
func (s *ReconcileService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *ReconcileService) stateLocked() State {
	st := State{
		AlarmLoaded: s.alarm != nil,
		SalesLoaded: s.sales != nil,
		ResultReady: s.result != nil,
	}
	if s.alarm != nil {
		st.AlarmDate = s.alarm.SourceDate
	}
	if s.sales != nil {
		st.SalesDate = s.sales.SourceDate
	}
	st.DatesMatch = reconciler.DatesMatch(st.AlarmDate, st.SalesDate)
	return st
}

// Reconcile checks preconditions and runs the engine against the
// matching configuration as of this call. A still-ready previous result
// must be cleared first (see Reset); callers implement the user-facing
// confirmation around that.
func (s *ReconcileService) Reconcile() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != nil {
		return nil, ErrResultReady
	}
	if s.alarm == nil {
		return nil, ErrAlarmSourceMissing
	}
	if s.sales == nil {
		return nil, ErrSalesSourceMissing
	}
	if !reconciler.DatesMatch(s.alarm.SourceDate, s.sales.SourceDate) {
		if s.metrics != nil {
			s.metrics.DateMismatches.Inc()
		}
		return nil, ErrDatesMismatch
	}

	cfg := s.matching
	unmatched := reconciler.Reconcile(s.alarm.Events, s.sales.Events, cfg)

	result := &Result{
		RunID:        uuid.NewString(),
		RunAt:        time.Now().UTC(),
		Events:       reconciler.SortForDisplay(unmatched),
		Floors:       reconciler.Floors(unmatched),
		AlarmDate:    s.alarm.SourceDate,
		SalesDate:    s.sales.SourceDate,
		Config:       cfg,
		AlarmEvents:  len(s.alarm.Events),
		SalesEvents:  len(s.sales.Events),
		AlarmDropped: s.alarm.Dropped,
		SalesDropped: s.sales.Dropped,
	}
	s.result = result

	if s.metrics != nil {
		s.metrics.RunsTotal.Inc()
		s.metrics.UnmatchedEvents.Set(float64(len(unmatched)))
	}

	run := &storage.ReconcileRun{
		ID:               result.RunID,
		RunAt:            result.RunAt,
		AlarmDate:        result.AlarmDate,
		SalesDate:        result.SalesDate,
		ToleranceSeconds: cfg.ToleranceSeconds,
		OffsetSeconds:    cfg.OffsetSeconds,
		AlarmEvents:      result.AlarmEvents,
		SalesEvents:      result.SalesEvents,
		UnmatchedEvents:  len(unmatched),
		AlarmDropped:     result.AlarmDropped,
		SalesDropped:     result.SalesDropped,
	}
	if err := s.repo.SaveRun(run); err != nil {
		// History is best-effort: a failed write must not lose the result.
		s.logger.Error("failed to record reconcile run", "error", err)
	}

	s.logger.Info("reconciliation complete",
		"run_id", result.RunID,
		"unmatched", len(unmatched),
		"tolerance_seconds", cfg.ToleranceSeconds)

	return result, nil
}

// Result returns the current ready result, if any.
func (s *ReconcileService) Result() (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}

// ResultReady reports whether a result is ready and not yet cleared.
func (s *ReconcileService) ResultReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil
}

// Reset clears the result, both sources, and their extracted dates.
func (s *ReconcileService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alarm = nil
	s.sales = nil
	s.result = nil

	s.logger.Info("pipeline state reset")
}

// MatchingConfig returns the matching parameters currently in effect.
func (s *ReconcileService) MatchingConfig() reconciler.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matching
}

// UpdateMatchingConfig applies and persists new matching parameters.
// The in-memory value stays authoritative for the session even when
// persistence fails; the failure is still reported to the caller.
func (s *ReconcileService) UpdateMatchingConfig(cfg reconciler.Config) error {
	if cfg.ToleranceSeconds < 0 {
		return ErrNegativeTolerance
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.matching = cfg

	if err := s.repo.SaveMatchingConfig(cfg); err != nil {
		s.logger.Error("failed to persist matching config", "error", err)
		return fmt.Errorf("persist matching config: %w", err)
	}

	s.logger.Info("matching config updated",
		"tolerance_seconds", cfg.ToleranceSeconds,
		"offset_seconds", cfg.OffsetSeconds)
	return nil
}

// Mapping returns the current location table for the given kind.
func (s *ReconcileService) Mapping(kind storage.MappingKind) mapping.Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case storage.MappingAlarm:
		return s.alarmFloors.Clone()
	default:
		return s.salesFloors.Clone()
	}
}

// UpdateMapping replaces a location table and persists it. Already
// loaded sources keep the events parsed with the old table; reloading a
// source applies the new one.
func (s *ReconcileService) UpdateMapping(kind storage.MappingKind, table mapping.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case storage.MappingAlarm:
		s.alarmFloors = table.Clone()
	case storage.MappingSales:
		s.salesFloors = table.Clone()
	default:
		return fmt.Errorf("unknown mapping kind %q", kind)
	}

	if err := s.repo.SaveMapping(kind, table); err != nil {
		s.logger.Error("failed to persist mapping", "kind", kind, "error", err)
		return fmt.Errorf("persist mapping %s: %w", kind, err)
	}
	return nil
}

// Runs returns recent reconciliation history.
func (s *ReconcileService) Runs(limit int) ([]*storage.ReconcileRun, error) {
	return s.repo.ListRuns(limit)
}
