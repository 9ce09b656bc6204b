// Package event defines the canonical event model shared by both log
// parsers and the reconciliation engine.
//
// An event is a (floor, time-of-day) pair. The date is deliberately not
// part of the model: both sources are required to describe the same
// business day, which is validated separately via the extracted source
// dates.
package event

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
// It carries no date component, so arithmetic on it never crosses a day
// boundary.
type TimeOfDay int

// ParseTimeOfDay parses a bare "HH:MM:SS" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM:SS", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid time %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: bad minute", s)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid time %q: bad second", s)
	}

	return TimeOfDay(h*3600 + m*60 + sec), nil
}

// String formats the time back as "HH:MM:SS".
func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// Event is the canonical unit both parsers produce: a normalized
// location code paired with a wall-clock time. Events are value types
// and immutable once produced.
type Event struct {
	Floor string
	Time  TimeOfDay
}

// ExtractionResult is the output of one successful parse of one source.
// Events follow source document order, not time order. SourceDate is the
// document's calendar date in canonical DD.MM.YYYY form, empty when the
// source carried no parseable date. Dropped counts records discarded for
// per-record soft failures (unresolved location, malformed time).
type ExtractionResult struct {
	Events     []Event
	SourceDate string
	Dropped    int
}
