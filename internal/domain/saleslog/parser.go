// Package saleslog parses the sales/transaction spreadsheet export. The
// first sheet carries a header row naming the showcase number, creation
// timestamp, and payment-status columns; only paid transactions become
// events.
package saleslog

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/floorwatch/floorwatch/internal/domain/event"
	"github.com/floorwatch/floorwatch/internal/domain/mapping"
)

// Column headers and the paid marker are fixed strings of the export's
// locale.
const (
	showcaseHeader  = "Номер витрины"
	createdAtHeader = "Дата создания"
	paidHeader      = "Оплачен"
	paidMarker      = "Да"

	createdAtLayout = "02.01.2006 15:04:05"
)

// ErrMissingColumns is returned when the first sheet's header row does
// not name all required columns; the file is treated as unreadable.
var ErrMissingColumns = errors.New("sales log: required columns not found in header row")

// Parse reads the first sheet of an .xlsx document and extracts one
// event per paid transaction with a resolvable showcase number. Rows
// that fail to resolve or parse are dropped silently and counted.
//
// The sheet's date is taken from the creation timestamp of the first
// data row regardless of payment status: the export is assumed to cover
// a single business day.
func Parse(r io.Reader, floors mapping.Table) (event.ExtractionResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return event.ExtractionResult{}, fmt.Errorf("sales log: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return event.ExtractionResult{}, errors.New("sales log: workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return event.ExtractionResult{}, fmt.Errorf("sales log: read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return event.ExtractionResult{}, ErrMissingColumns
	}

	cols, err := locateColumns(rows[0])
	if err != nil {
		return event.ExtractionResult{}, err
	}

	var result event.ExtractionResult

	for i, row := range rows[1:] {
		createdAt := cell(row, cols.createdAt)

		if i == 0 {
			result.SourceDate = datePart(createdAt)
		}

		if cell(row, cols.paid) != paidMarker {
			continue
		}

		floor, ok := floors.Resolve(cell(row, cols.showcase))
		if !ok {
			result.Dropped++
			continue
		}

		ts, err := time.Parse(createdAtLayout, createdAt)
		if err != nil {
			result.Dropped++
			continue
		}

		result.Events = append(result.Events, event.Event{
			Floor: floor,
			Time:  event.TimeOfDay(ts.Hour()*3600 + ts.Minute()*60 + ts.Second()),
		})
	}

	return result, nil
}

type columnIndexes struct {
	showcase  int
	createdAt int
	paid      int
}

func locateColumns(header []string) (columnIndexes, error) {
	cols := columnIndexes{showcase: -1, createdAt: -1, paid: -1}

	for i, name := range header {
		switch strings.TrimSpace(name) {
		case showcaseHeader:
			cols.showcase = i
		case createdAtHeader:
			cols.createdAt = i
		case paidHeader:
			cols.paid = i
		}
	}

	if cols.showcase < 0 || cols.createdAt < 0 || cols.paid < 0 {
		return cols, ErrMissingColumns
	}
	return cols, nil
}

// cell returns the trimmed value at index i, tolerating short rows:
// excelize omits trailing empty cells.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// datePart extracts the DD.MM.YYYY component of a creation timestamp,
// which is already in canonical form in this export.
func datePart(createdAt string) string {
	if fields := strings.Fields(createdAt); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
