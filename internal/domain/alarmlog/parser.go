// Package alarmlog parses the free-text alarm/access export produced by
// the DVR. The export mixes several event types; only local-alarm events
// carry a (channel, start time) pair worth reconciling.
//
// Field labels are fixed Russian strings in this export format. Files
// arrive either as UTF-8 or as Windows-1251, which is detected and
// decoded transparently.
package alarmlog

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/floorwatch/floorwatch/internal/domain/event"
	"github.com/floorwatch/floorwatch/internal/domain/mapping"
)

// Fixed markers and field labels of the export format.
const (
	recordDelimiter   = "Дата"
	eventStartMarker  = "Начало события"
	localAlarmMarker  = "Тип события:Локальная тревога"
	channelLabel      = "Канал:"
	startTimeLabel    = "Начало:"
	documentDateLabel = "Дата:"
)

// Parse extracts local-alarm events and the document date from the full
// text of an alarm export. Records that fail to resolve or parse are
// dropped silently and counted; a missing or malformed document date
// yields an empty SourceDate, which is a soft failure.
func Parse(data []byte, floors mapping.Table) event.ExtractionResult {
	text := decode(data)

	var result event.ExtractionResult

	for _, block := range strings.Split(text, recordDelimiter) {
		if !strings.Contains(block, eventStartMarker) || !strings.Contains(block, localAlarmMarker) {
			continue
		}

		channel, startTime := extractRecordFields(block)
		if channel == "" || startTime == "" {
			result.Dropped++
			continue
		}

		floor, ok := floors.Resolve(channel)
		if !ok {
			result.Dropped++
			continue
		}

		t, err := event.ParseTimeOfDay(startTime)
		if err != nil {
			result.Dropped++
			continue
		}

		result.Events = append(result.Events, event.Event{Floor: floor, Time: t})
	}

	result.SourceDate = extractDocumentDate(text)

	return result
}

// extractRecordFields pulls the channel and start-time values out of one
// record block by their labeled lines.
func extractRecordFields(block string) (channel, startTime string) {
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, channelLabel):
			channel = strings.TrimSpace(strings.TrimPrefix(line, channelLabel))
		case strings.HasPrefix(line, startTimeLabel):
			rest := strings.TrimSpace(strings.TrimPrefix(line, startTimeLabel))
			if fields := strings.Fields(rest); len(fields) > 0 {
				startTime = fields[0]
			}
		}
	}
	return channel, startTime
}

// extractDocumentDate locates the document's date line and normalizes
// its YYYY-MM-DD value to canonical DD.MM.YYYY. Returns "" when the
// line is absent or malformed.
func extractDocumentDate(text string) string {
	for _, line := range strings.Split(text, "\n") {
		idx := strings.Index(line, documentDateLabel)
		if idx < 0 {
			continue
		}

		value := strings.TrimSpace(line[idx+len(documentDateLabel):])
		if fields := strings.Fields(value); len(fields) > 0 {
			value = fields[0]
		}

		parts := strings.Split(value, "-")
		if len(parts) != 3 {
			return ""
		}
		return parts[2] + "." + parts[1] + "." + parts[0]
	}
	return ""
}

// decode returns the export as UTF-8 text, converting from Windows-1251
// when the raw bytes are not already valid UTF-8.
func decode(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
