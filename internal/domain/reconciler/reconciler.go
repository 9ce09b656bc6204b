// Package reconciler implements the core matching algorithm: finding
// alarm events that have no sales counterpart at the same floor within
// a configured time tolerance.
//
// Times are compared as flat seconds-since-midnight. An alarm at
// 23:59:50 and a sale at 00:00:05 are NOT matched even though they may
// be seconds apart physically: day-boundary wraparound is out of scope
// by definition, not by accident.
package reconciler

import (
	"sort"
	"strconv"

	"github.com/floorwatch/floorwatch/internal/domain/event"
)

// Config holds the user-adjustable matching parameters.
type Config struct {
	// ToleranceSeconds is the maximum |Δt| for an alarm and a sale to
	// be considered the same physical event.
	ToleranceSeconds int
	// OffsetSeconds corrects a known clock skew between the two
	// sources; it is added to every sales time before comparison.
	OffsetSeconds int
}

// DefaultConfig returns the first-run defaults.
func DefaultConfig() Config {
	return Config{ToleranceSeconds: 30}
}

// Reconcile returns the alarm events with no matching sales event, in
// alarm input order. An alarm event (floorA, tA) is matched when some
// sales event (floorS, tS) has floorA == floorS and
// |tA - (tS + offset)| <= tolerance.
//
// The scan is existential per alarm event; sales events are grouped by
// floor first so the common case is O(n + m) in the number of floors'
// events rather than a full cross product. Results are identical to the
// naive nested scan. Pure and idempotent: same inputs, same output.
func Reconcile(alarm, sales []event.Event, cfg Config) []event.Event {
	byFloor := make(map[string][]int, len(sales))
	for _, s := range sales {
		byFloor[s.Floor] = append(byFloor[s.Floor], int(s.Time)+cfg.OffsetSeconds)
	}

	unmatched := make([]event.Event, 0)
	for _, a := range alarm {
		if !hasMatch(int(a.Time), byFloor[a.Floor], cfg.ToleranceSeconds) {
			unmatched = append(unmatched, a)
		}
	}
	return unmatched
}

func hasMatch(alarmTime int, salesTimes []int, tolerance int) bool {
	for _, s := range salesTimes {
		diff := alarmTime - s
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return true
		}
	}
	return false
}

// SortForDisplay orders unmatched events for presentation: the sequence
// is reversed, then stable-sorted by floor ascending. Since parse order
// is chronological, this surfaces the most recent events first within
// each floor group. The input is not modified.
func SortForDisplay(events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	sort.SliceStable(out, func(i, j int) bool {
		return floorLess(out[i].Floor, out[j].Floor)
	})
	return out
}

// floorLess compares floor codes numerically when both parse as
// integers, falling back to lexicographic order otherwise.
func floorLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// Floors returns the distinct floor codes present in events, sorted
// ascending with the same ordering as SortForDisplay.
func Floors(events []event.Event) []string {
	seen := make(map[string]bool, len(events))
	floors := make([]string, 0, len(events))
	for _, e := range events {
		if !seen[e.Floor] {
			seen[e.Floor] = true
			floors = append(floors, e.Floor)
		}
	}
	sort.Slice(floors, func(i, j int) bool { return floorLess(floors[i], floors[j]) })
	return floors
}

// DatesMatch reports whether the two extracted source dates agree,
// by exact comparison on the canonical DD.MM.YYYY form.
//
// When exactly one side is absent the dates are treated as mismatched:
// an absent date means the source could not prove it covers the same
// day. Two absent dates compare equal, which keeps date-less fixtures
// usable.
func DatesMatch(alarmDate, salesDate string) bool {
	return alarmDate == salesDate
}
