package clockgate

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestAdmitted_EmptyWindowWhenStartEqualsEnd(t *testing.T) {
	loc := mustLoc(t)
	w := FromMondayIndices([]int{0, 1, 2, 3, 4, 5, 6}, 9, 9)
	now := time.Date(2026, 7, 27, 9, 0, 0, 0, loc) // Monday
	if Admitted(w, now, false) {
		t.Fatalf("expected start_hour == end_hour to admit nothing")
	}
}

func TestAdmitted_AlwaysWhenFullDayAllWeek(t *testing.T) {
	loc := mustLoc(t)
	w := FromMondayIndices([]int{0, 1, 2, 3, 4, 5, 6}, 0, 24)
	for h := 0; h < 24; h++ {
		now := time.Date(2026, 7, 27, h, 15, 0, 0, loc)
		if !Admitted(w, now, false) {
			t.Fatalf("hour %d: expected admitted with full-day all-week window", h)
		}
	}
}

func TestAdmitted_PausedNeverAdmitted(t *testing.T) {
	loc := mustLoc(t)
	w := FromMondayIndices([]int{0, 1, 2, 3, 4, 5, 6}, 0, 24)
	now := time.Date(2026, 7, 27, 12, 0, 0, 0, loc)
	if Admitted(w, now, true) {
		t.Fatalf("expected paused job to never be admitted")
	}
}

func TestAdmitted_WeekdayMapping(t *testing.T) {
	loc := mustLoc(t)
	// Only Sunday (spec index 6) active.
	w := FromMondayIndices([]int{6}, 0, 24)

	sunday := time.Date(2026, 8, 2, 10, 0, 0, 0, loc)
	if !Admitted(w, sunday, false) {
		t.Fatalf("expected Sunday admitted when spec index 6 is active")
	}

	monday := time.Date(2026, 7, 27, 10, 0, 0, 0, loc)
	if Admitted(w, monday, false) {
		t.Fatalf("expected Monday rejected when only spec index 6 is active")
	}
}

func TestAdmitted_HourBoundaries(t *testing.T) {
	loc := mustLoc(t)
	w := FromMondayIndices([]int{0, 1, 2, 3, 4, 5, 6}, 9, 17)

	cases := []struct {
		hour int
		want bool
	}{
		{8, false},
		{9, true},
		{16, true},
		{17, false},
	}
	for _, c := range cases {
		now := time.Date(2026, 7, 27, c.hour, 0, 0, 0, loc)
		if got := Admitted(w, now, false); got != c.want {
			t.Errorf("hour %d: got admitted=%v, want %v", c.hour, got, c.want)
		}
	}
}
