package saleslog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/floorwatch/floorwatch/internal/domain/event"
	"github.com/floorwatch/floorwatch/internal/domain/mapping"
)

var testFloors = mapping.Table{
	"667": "19",
	"668": "20",
	"670": "22",
}

// buildWorkbook writes an xlsx document with the standard header row and
// the given data rows into a buffer.
func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
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
	return &buf
}

func TestParse_PaidRowsOnly(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"670", "05.03.2024 10:00:20", "Да"},
		{"668", "05.03.2024 10:05:00", "Нет"},
		{"667", "05.03.2024 10:07:31", "Да"},
	})

	result, err := Parse(buf, testFloors)
	require.NoError(t, err)

	require.Len(t, result.Events, 2)
	assert.Equal(t, event.Event{Floor: "22", Time: mustTime(t, "10:00:20")}, result.Events[0])
	assert.Equal(t, event.Event{Floor: "19", Time: mustTime(t, "10:07:31")}, result.Events[1])
	assert.Equal(t, 0, result.Dropped)
}

func TestParse_SourceDateFromFirstRowRegardlessOfPayment(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"668", "05.03.2024 09:00:00", "Нет"},
		{"670", "05.03.2024 10:00:00", "Да"},
	})

	result, err := Parse(buf, testFloors)
	require.NoError(t, err)

	assert.Equal(t, "05.03.2024", result.SourceDate)
}

func TestParse_UnresolvedShowcaseDropped(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"999", "05.03.2024 10:00:00", "Да"},
		{"670", "05.03.2024 10:01:00", "Да"},
	})

	result, err := Parse(buf, testFloors)
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "22", result.Events[0].Floor)
	assert.Equal(t, 1, result.Dropped)
}

func TestParse_MalformedTimestampDropped(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"670", "2024/03/05 10:00", "Да"},
		{"667", "05.03.2024 11:30:00", "Да"},
	})

	result, err := Parse(buf, testFloors)
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "19", result.Events[0].Floor)
	assert.Equal(t, 1, result.Dropped)
}

func TestParse_EmptySheetIsUnreadable(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err := Parse(&buf, testFloors)
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestParse_MissingColumns(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"Номер витрины", "Сумма"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err := Parse(&buf, testFloors)
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestParse_NotASpreadsheet(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("plain text, not a zip")), testFloors)
	assert.Error(t, err)
}

func TestParse_NoDataRows(t *testing.T) {
	buf := buildWorkbook(t, nil)

	result, err := Parse(buf, testFloors)
	require.NoError(t, err)

	assert.Empty(t, result.Events)
	assert.Empty(t, result.SourceDate)
}

func mustTime(t *testing.T, s string) event.TimeOfDay {
	t.Helper()
	tod, err := event.ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}
