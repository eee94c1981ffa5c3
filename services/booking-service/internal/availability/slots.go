package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is a dated, unbooked piece of a schedule window.
type Slot = Interval

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals. A trailing remainder shorter
// than duration yields no slot.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

// FixedSlots discretizes every window of date's weekday into consecutive slots of
// length size and keeps the ones no busy interval touches.
func FixedSlots(date time.Time, windows []schedule.Schedule, busy []Interval, size time.Duration) []Slot {
	var out []Slot
	for _, w := range datedWindows(date, windows) {
		for _, start := range AvailableSlots(w.Start, w.End, size, size, busy) {
			out = append(out, Slot{Start: start, End: start.Add(size)})
		}
	}
	return out
}

// FreeWindows returns the gaps left in each window of date's weekday after
// subtracting busy intervals.
func FreeWindows(date time.Time, windows []schedule.Schedule, busy []Interval) []Slot {
	sorted := append([]Interval(nil), busy...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var out []Slot
	for _, w := range datedWindows(date, windows) {
		cursor := w.Start
		for _, b := range sorted {
			if !b.Start.Before(w.End) || !b.End.After(cursor) {
				continue
			}
			if b.Start.After(cursor) {
				out = append(out, Slot{Start: cursor, End: b.Start})
			}
			cursor = b.End
			if !cursor.Before(w.End) {
				break
			}
		}
		if cursor.Before(w.End) {
			out = append(out, Slot{Start: cursor, End: w.End})
		}
	}
	return out
}

// datedWindows places the windows matching date's weekday on date, ordered by start.
func datedWindows(date time.Time, windows []schedule.Schedule) []Interval {
	w := schedule.Walker{Schedules: windows}
	var out []Interval
	for _, s := range w.WindowsOn(date.Weekday()) {
		out = append(out, Interval{Start: s.Start.On(date), End: s.End.On(date)})
	}
	return out
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
