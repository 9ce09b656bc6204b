package storage

import "time"

// MappingKind identifies which of the two location tables a row belongs
// to. The two tables are independent: nothing links their floor codes.
type MappingKind string

const (
	// MappingAlarm translates alarm-log channel numbers to floors.
	MappingAlarm MappingKind = "channel_to_floor"
	// MappingSales translates sales-log showcase numbers to floors.
	MappingSales MappingKind = "showcase_to_floor"
)

// ReconcileRun records one completed reconciliation for history and
// diagnostics. Dropped counts make the parsers' silent per-record
// swallowing observable without turning drops into user-facing errors.
type ReconcileRun struct {
	ID               string    `json:"id"`
	RunAt            time.Time `json:"run_at"`
	AlarmDate        string    `json:"alarm_date"`
	SalesDate        string    `json:"sales_date"`
	ToleranceSeconds int       `json:"tolerance_seconds"`
	OffsetSeconds    int       `json:"offset_seconds"`
	AlarmEvents      int       `json:"alarm_events"`
	SalesEvents      int       `json:"sales_events"`
	UnmatchedEvents  int       `json:"unmatched_events"`
	AlarmDropped     int       `json:"alarm_dropped"`
	SalesDropped     int       `json:"sales_dropped"`
}
