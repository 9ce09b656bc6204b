package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floorwatch/floorwatch/internal/domain/event"
)

func ev(t *testing.T, floor, tod string) event.Event {
	t.Helper()
	parsed, err := event.ParseTimeOfDay(tod)
	require.NoError(t, err)
	return event.Event{Floor: floor, Time: parsed}
}

func TestReconcile_WorkedExample(t *testing.T) {
	alarm := []event.Event{
		ev(t, "22", "10:00:00"),
		ev(t, "23", "10:05:00"),
	}
	sales := []event.Event{
		ev(t, "22", "10:00:20"),
	}

	got := Reconcile(alarm, sales, Config{ToleranceSeconds: 30})

	require.Len(t, got, 1)
	assert.Equal(t, ev(t, "23", "10:05:00"), got[0])
}

func TestReconcile_ToleranceBoundaryInclusive(t *testing.T) {
	alarm := []event.Event{ev(t, "20", "10:00:00")}

	// Exactly at the tolerance edge counts as matched.
	exact := []event.Event{ev(t, "20", "10:00:30")}
	assert.Empty(t, Reconcile(alarm, exact, Config{ToleranceSeconds: 30}))

	// One second past it does not.
	past := []event.Event{ev(t, "20", "10:00:31")}
	assert.Len(t, Reconcile(alarm, past, Config{ToleranceSeconds: 30}), 1)
}

func TestReconcile_FloorMustMatch(t *testing.T) {
	alarm := []event.Event{ev(t, "22", "10:00:00")}
	sales := []event.Event{ev(t, "23", "10:00:00")}

	got := Reconcile(alarm, sales, Config{ToleranceSeconds: 30})
	assert.Len(t, got, 1)
}

func TestReconcile_NoMidnightWraparound(t *testing.T) {
	alarm := []event.Event{ev(t, "19", "23:59:50")}
	sales := []event.Event{ev(t, "19", "00:00:05")}

	// Physically seconds apart, but flat seconds-since-midnight puts
	// them almost a full day apart.
	got := Reconcile(alarm, sales, Config{ToleranceSeconds: 60})
	require.Len(t, got, 1)
	assert.Equal(t, "19", got[0].Floor)
}

func TestReconcile_OffsetAppliedToSales(t *testing.T) {
	alarm := []event.Event{ev(t, "21", "10:00:00")}
	sales := []event.Event{ev(t, "21", "09:59:00")}

	assert.Len(t, Reconcile(alarm, sales, Config{ToleranceSeconds: 0}), 1)
	assert.Empty(t, Reconcile(alarm, sales, Config{ToleranceSeconds: 0, OffsetSeconds: 60}))
}

func TestReconcile_EmptyInputs(t *testing.T) {
	got := Reconcile(nil, nil, Config{ToleranceSeconds: 30})
	assert.Empty(t, got)

	alarm := []event.Event{ev(t, "22", "10:00:00")}
	got = Reconcile(alarm, nil, Config{ToleranceSeconds: 30})
	assert.Equal(t, alarm, got)
}

func TestReconcile_Idempotent(t *testing.T) {
	alarm := []event.Event{
		ev(t, "24", "12:00:00"),
		ev(t, "20", "12:10:00"),
		ev(t, "24", "12:20:00"),
	}
	sales := []event.Event{
		ev(t, "20", "12:10:10"),
	}
	cfg := Config{ToleranceSeconds: 30}

	first := Reconcile(alarm, sales, cfg)
	second := Reconcile(alarm, sales, cfg)
	assert.Equal(t, first, second)
}

func TestReconcile_MonotonicInTolerance(t *testing.T) {
	alarm := []event.Event{
		ev(t, "22", "10:00:00"),
		ev(t, "22", "10:01:00"),
		ev(t, "22", "10:05:00"),
	}
	sales := []event.Event{
		ev(t, "22", "10:00:45"),
	}

	// result(T) ⊆ result(T') whenever T >= T'.
	prev := len(alarm) + 1
	for _, tol := range []int{0, 30, 45, 60, 300} {
		got := Reconcile(alarm, sales, Config{ToleranceSeconds: tol})
		assert.LessOrEqual(t, len(got), prev, "tolerance %d", tol)
		prev = len(got)
	}
}

func TestReconcile_MultipleSalesSameFloorAndTime(t *testing.T) {
	alarm := []event.Event{ev(t, "25", "14:00:00")}
	sales := []event.Event{
		ev(t, "25", "14:00:10"),
		ev(t, "25", "14:00:10"),
		ev(t, "25", "13:00:00"),
	}

	assert.Empty(t, Reconcile(alarm, sales, Config{ToleranceSeconds: 30}))
}

func TestSortForDisplay_ReverseThenStableSortByFloor(t *testing.T) {
	input := []event.Event{
		ev(t, "24", "10:00:01"),
		ev(t, "20", "10:00:02"),
		ev(t, "24", "10:00:03"),
	}

	got := SortForDisplay(input)

	want := []event.Event{
		ev(t, "20", "10:00:02"),
		ev(t, "24", "10:00:03"),
		ev(t, "24", "10:00:01"),
	}
	assert.Equal(t, want, got)

	// Input untouched.
	assert.Equal(t, ev(t, "24", "10:00:01"), input[0])
}

func TestSortForDisplay_NumericFloorOrder(t *testing.T) {
	input := []event.Event{
		ev(t, "9", "10:00:00"),
		ev(t, "22", "11:00:00"),
	}

	got := SortForDisplay(input)
	assert.Equal(t, "9", got[0].Floor, "numeric order, not lexicographic")
}

func TestFloors(t *testing.T) {
	input := []event.Event{
		ev(t, "24", "10:00:00"),
		ev(t, "20", "10:00:00"),
		ev(t, "24", "11:00:00"),
	}

	assert.Equal(t, []string{"20", "24"}, Floors(input))
	assert.Empty(t, Floors(nil))
}

func TestDatesMatch(t *testing.T) {
	assert.True(t, DatesMatch("05.03.2024", "05.03.2024"))
	assert.False(t, DatesMatch("05.03.2024", "06.03.2024"))

	// One side absent is a mismatch; both absent compare equal.
	assert.False(t, DatesMatch("05.03.2024", ""))
	assert.False(t, DatesMatch("", "05.03.2024"))
	assert.True(t, DatesMatch("", ""))
}
