// Package dto defines the JSON request/response shapes of the HTTP API.
package dto

import (
	"github.com/floorwatch/floorwatch/internal/application/service"
	"github.com/floorwatch/floorwatch/internal/infrastructure/storage"
)

// Error codes returned in ErrorResponse.Code. Precondition failures are
// deliberately distinct so the client can present each separately.
const (
	CodeAlarmSourceMissing   = "alarm_source_missing"
	CodeSalesSourceMissing   = "sales_source_missing"
	CodeDatesMismatch        = "dates_mismatch"
	CodeConfirmationRequired = "confirmation_required"
	CodeSourceUnreadable     = "source_unreadable"
	CodeInvalidTolerance     = "invalid_tolerance"
	CodeNoResult             = "no_result"
	CodeBadRequest           = "bad_request"
	CodeInternal             = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is one unmatched alarm event.
type Event struct {
	Floor string `json:"floor"`
	Time  string `json:"time"`
}

// StateResponse reports which sources are loaded and whether their
// dates agree.
type StateResponse struct {
	AlarmLoaded bool   `json:"alarm_loaded"`
	SalesLoaded bool   `json:"sales_loaded"`
	AlarmDate   string `json:"alarm_date,omitempty"`
	SalesDate   string `json:"sales_date,omitempty"`
	DatesMatch  bool   `json:"dates_match"`
	ResultReady bool   `json:"result_ready"`
}

// NewStateResponse converts a service state snapshot.
func NewStateResponse(st service.State) StateResponse {
	return StateResponse{
		AlarmLoaded: st.AlarmLoaded,
		SalesLoaded: st.SalesLoaded,
		AlarmDate:   st.AlarmDate,
		SalesDate:   st.SalesDate,
		DatesMatch:  st.DatesMatch,
		ResultReady: st.ResultReady,
	}
}

// ReconcileRequest carries the confirmation flag for the reset protocol.
type ReconcileRequest struct {
	Confirm bool `json:"confirm"`
}

// ReconcileResponse is returned when a reconcile request reset prior
// state instead of producing a result.
type ReconcileResponse struct {
	Reset bool `json:"reset"`
}

// ResultResponse is one reconciliation result in display order.
type ResultResponse struct {
	RunID            string   `json:"run_id"`
	RunAt            string   `json:"run_at"`
	Events           []Event  `json:"events"`
	Floors           []string `json:"floors"`
	AlarmDate        string   `json:"alarm_date"`
	SalesDate        string   `json:"sales_date"`
	ToleranceSeconds int      `json:"tolerance_seconds"`
	OffsetSeconds    int      `json:"offset_seconds"`
	AlarmEvents      int      `json:"alarm_events"`
	SalesEvents      int      `json:"sales_events"`
	AlarmDropped     int      `json:"alarm_dropped"`
	SalesDropped     int      `json:"sales_dropped"`
}

// NewResultResponse converts a service result, optionally filtered to a
// single floor.
func NewResultResponse(result *service.Result, floorFilter string) ResultResponse {
	events := make([]Event, 0, len(result.Events))
	for _, e := range result.Events {
		if floorFilter != "" && e.Floor != floorFilter {
			continue
		}
		events = append(events, Event{Floor: e.Floor, Time: e.Time.String()})
	}

	return ResultResponse{
		RunID:            result.RunID,
		RunAt:            result.RunAt.Format("2006-01-02T15:04:05Z07:00"),
		Events:           events,
		Floors:           result.Floors,
		AlarmDate:        result.AlarmDate,
		SalesDate:        result.SalesDate,
		ToleranceSeconds: result.Config.ToleranceSeconds,
		OffsetSeconds:    result.Config.OffsetSeconds,
		AlarmEvents:      result.AlarmEvents,
		SalesEvents:      result.SalesEvents,
		AlarmDropped:     result.AlarmDropped,
		SalesDropped:     result.SalesDropped,
	}
}

// MatchingConfigRequest updates matching parameters. Omitted fields
// keep their current values.
type MatchingConfigRequest struct {
	ToleranceSeconds *int `json:"tolerance_seconds"`
	OffsetSeconds    *int `json:"offset_seconds"`
}

// MatchingConfigResponse reports the matching parameters in effect.
type MatchingConfigResponse struct {
	ToleranceSeconds int `json:"tolerance_seconds"`
	OffsetSeconds    int `json:"offset_seconds"`
}

// SettingsResponse bundles everything the settings surface edits.
type SettingsResponse struct {
	Matching MatchingConfigResponse `json:"matching"`
	Mappings MappingsResponse       `json:"mappings"`
}

// MappingsResponse carries both location tables.
type MappingsResponse struct {
	Alarm map[string]string `json:"alarm"`
	Sales map[string]string `json:"sales"`
}

// RunsResponse lists recent reconciliation runs.
type RunsResponse struct {
	Runs []*storage.ReconcileRun `json:"runs"`
}
