package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/floorwatch/floorwatch/internal/api/dto"
	"github.com/floorwatch/floorwatch/internal/application/service"
	"github.com/floorwatch/floorwatch/internal/infrastructure/config"
	"github.com/floorwatch/floorwatch/internal/infrastructure/storage"
	"github.com/floorwatch/floorwatch/internal/observability"
)

const alarmFixture = `Дата:2024-03-05 18:00:00
Дата время Событие
Начало события
Тип события:Локальная тревога
Канал:1
Начало: 10:00:00
Дата время Событие
Начало события
Тип события:Локальная тревога
Канал:2
Начало: 10:05:00
`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo := storage.NewMockRepository()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	svc, err := service.NewReconcileService(repo, nil, metrics)
	require.NoError(t, err)

	return NewServer(config.ServerConfig{Port: 0}, svc, registry, nil)
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func salesWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"Номер витрины", "Дата создания", "Оплачен"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))

	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func loadBothSources(t *testing.T, s *Server) {
	t.Helper()

	w := doRequest(t, s, http.MethodPost, "/api/sources/alarm", []byte(alarmFixture), "text/plain")
	require.Equal(t, http.StatusOK, w.Code)

	sales := salesWorkbook(t, [][]interface{}{
		{"670", "05.03.2024 10:00:20", "Да"},
	})
	w = doRequest(t, s, http.MethodPost, "/api/sources/sales", sales, "application/octet-stream")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestReconcile_FullFlow(t *testing.T) {
	s := newTestServer(t)
	loadBothSources(t, s)

	w := doRequest(t, s, http.MethodPost, "/api/reconcile", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var result dto.ResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	require.Len(t, result.Events, 1)
	assert.Equal(t, "23", result.Events[0].Floor)
	assert.Equal(t, "10:05:00", result.Events[0].Time)
	assert.Equal(t, 30, result.ToleranceSeconds)

	// Results endpoint serves the same run.
	w = doRequest(t, s, http.MethodGet, "/api/results", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	// Floor filter.
	w = doRequest(t, s, http.MethodGet, "/api/results?floor=22", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var filtered dto.ResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	assert.Empty(t, filtered.Events)
}

func TestReconcile_PreconditionCodes(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/reconcile", nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, dto.CodeAlarmSourceMissing, errResp.Code)

	w = doRequest(t, s, http.MethodPost, "/api/sources/alarm", []byte(alarmFixture), "text/plain")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/reconcile", nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, dto.CodeSalesSourceMissing, errResp.Code)
}

func TestReconcile_DateMismatchCode(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/sources/alarm", []byte(alarmFixture), "text/plain")
	require.Equal(t, http.StatusOK, w.Code)

	sales := salesWorkbook(t, [][]interface{}{
		{"670", "06.03.2024 10:00:20", "Да"},
	})
	w = doRequest(t, s, http.MethodPost, "/api/sources/sales", sales, "application/octet-stream")
	require.Equal(t, http.StatusOK, w.Code)

	var st dto.StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.DatesMatch)

	w = doRequest(t, s, http.MethodPost, "/api/reconcile", nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, dto.CodeDatesMismatch, errResp.Code)
}

func TestReconcile_ConfirmResetProtocol(t *testing.T) {
	s := newTestServer(t)
	loadBothSources(t, s)

	w := doRequest(t, s, http.MethodPost, "/api/reconcile", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	// Without confirmation: refused, nothing cleared.
	w = doRequest(t, s, http.MethodPost, "/api/reconcile", nil, "")
	require.Equal(t, http.StatusConflict, w.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, dto.CodeConfirmationRequired, errResp.Code)

	w = doRequest(t, s, http.MethodGet, "/api/results", nil, "")
	assert.Equal(t, http.StatusOK, w.Code, "declining must leave the result available")

	// With confirmation: prior state cleared wholesale.
	w = doRequest(t, s, http.MethodPost, "/api/reconcile", []byte(`{"confirm":true}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	var reset dto.ReconcileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reset))
	assert.True(t, reset.Reset)

	w = doRequest(t, s, http.MethodGet, "/api/state", nil, "")
	var st dto.StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.AlarmLoaded)
	assert.False(t, st.SalesLoaded)
	assert.False(t, st.ResultReady)
}

func TestSettings_GetAndUpdate(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/settings", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var settings dto.SettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, 30, settings.Matching.ToleranceSeconds)
	assert.Equal(t, "22", settings.Mappings.Alarm["1"])
	assert.Equal(t, "19", settings.Mappings.Sales["667"])

	// Partial update: only tolerance.
	w = doRequest(t, s, http.MethodPut, "/api/settings/matching",
		[]byte(`{"tolerance_seconds":90}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	var matching dto.MatchingConfigResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &matching))
	assert.Equal(t, 90, matching.ToleranceSeconds)
	assert.Equal(t, 0, matching.OffsetSeconds)
}

func TestSettings_NegativeToleranceRejected(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPut, "/api/settings/matching",
		[]byte(`{"tolerance_seconds":-5}`), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, dto.CodeInvalidTolerance, errResp.Code)
}

func TestSettings_ReplaceMapping(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPut, "/api/settings/mappings/sales",
		[]byte(`{"700":"27"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/settings", nil, "")
	var settings dto.SettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, map[string]string{"700": "27"}, settings.Mappings.Sales)
}

func TestSources_UnreadableSales(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/sources/sales",
		[]byte("not a spreadsheet"), "application/octet-stream")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, dto.CodeSourceUnreadable, errResp.Code)
}

func TestResults_NotReady(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/results", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, dto.CodeNoResult, errResp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	loadBothSources(t, s)

	w := doRequest(t, s, http.MethodPost, "/api/reconcile", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "floorwatch_reconcile_runs_total"))
}

func TestRunsEndpoint(t *testing.T) {
	s := newTestServer(t)
	loadBothSources(t, s)

	w := doRequest(t, s, http.MethodPost, "/api/reconcile", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/runs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var runs dto.RunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, 1, runs.Runs[0].UnmatchedEvents)
}
