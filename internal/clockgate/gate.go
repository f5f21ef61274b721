// Package clockgate evaluates whether a scheduler job is currently inside
// its allowed fetch window. The civil time zone is a domain rule, not a
// presentation concern: it is always America/New_York regardless of host
// locale (spec §4.2, §9). Stored timestamps remain absolute (UTC); only the
// gate's weekday/hour comparison happens in civil time.
package clockgate

import (
	"fmt"
	"time"

	"github.com/rinkvault/scheduler/internal/config"
)

var civilLocation = mustLoadLocation(config.CivilZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// The civil zone is a fixed domain constant; failing to load it is a
		// deployment defect (missing tzdata), not a runtime condition to
		// recover from.
		panic(fmt.Sprintf("clockgate: load location %q: %v", name, err))
	}
	return loc
}

// Window is the admissible (weekday, hour-range) policy for one job.
type Window struct {
	// ActiveDays holds true for each admitted time.Weekday (0=Sunday in the
	// stdlib; callers normalize from the spec's 0=Monday..6=Sunday indexing
	// via FromMondayIndices).
	ActiveDays [7]bool
	StartHour  int // 0-23 inclusive
	EndHour    int // 1-24 exclusive upper bound
}

// FromMondayIndices builds a Window from the spec's 0=Mon..6=Sun day indices.
func FromMondayIndices(days []int, startHour, endHour int) Window {
	var w Window
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		// spec: 0=Mon..6=Sun. time.Weekday: 0=Sun..6=Sat.
		stdDay := time.Weekday((d + 1) % 7)
		w.ActiveDays[stdDay] = true
	}
	w.StartHour = startHour
	w.EndHour = endHour
	return w
}

// Admitted reports whether `now`, mapped into the fixed civil zone, falls
// inside the window and the job is not paused. A job that is paused is never
// admitted regardless of the window (spec §4.5: the gate additionally
// rejects when paused).
func Admitted(w Window, now time.Time, paused bool) bool {
	if paused {
		return false
	}
	civil := now.In(civilLocation)
	if !w.ActiveDays[civil.Weekday()] {
		return false
	}
	hour := civil.Hour()
	return hour >= w.StartHour && hour < w.EndHour
}

// Now returns the current instant (time.Now). It is a plain function, not a
// variable, so callers cannot swap in a fixed clock through it; tests of the
// gate pass explicit instants to Admitted instead.
func Now() time.Time {
	return time.Now()
}
