package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
)

const day = 24 * time.Hour

// TimeOfDay is a wall-clock time without a date, stored as the offset from midnight.
// 24:00 is allowed as an end of day.
type TimeOfDay time.Duration

func At(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseTimeOfDay accepts "HH:MM" (24h) and "24:00".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return TimeOfDay(day), nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, apperr.InvalidInput("time_of_day", "invalid time of day %q (want HH:MM)", s)
	}
	return At(t.Hour(), t.Minute()), nil
}

// Of returns the wall-clock time of day of t in t's own location.
func Of(t time.Time) TimeOfDay {
	return At(t.Hour(), t.Minute()) + TimeOfDay(time.Duration(t.Second())*time.Second+time.Duration(t.Nanosecond()))
}

// Since returns the wall-clock offset of t from the start of date's calendar
// day, in date's location. Times on later days count whole days, so an end on
// the next midnight is 24:00 and anything after it is past the day.
func Since(date, t time.Time) TimeOfDay {
	t = t.In(date.Location())
	dy, dm, dd := date.Date()
	ty, tm, td := t.Date()
	days := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC).Sub(time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)) / day
	return TimeOfDay(days*day) + Of(t)
}

// On places the time of day on the calendar date of date, in date's location.
// The result is the wall-clock reading, so DST changes do not shift it.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	dur := time.Duration(t)
	return time.Date(y, m, d, int(dur/time.Hour), int(dur%time.Hour/time.Minute), int(dur%time.Minute/time.Second), int(dur%time.Second), date.Location())
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Schedule is one recurring weekly availability window.
type Schedule struct {
	Day   time.Weekday
	Start TimeOfDay
	End   TimeOfDay
}

func New(dayOfWeek time.Weekday, start, end TimeOfDay) (Schedule, error) {
	if dayOfWeek < time.Sunday || dayOfWeek > time.Saturday {
		return Schedule{}, apperr.InvalidInput("day_of_week", "day of week must be 0-6, got %d", int(dayOfWeek))
	}
	if start < 0 || end > TimeOfDay(day) {
		return Schedule{}, apperr.InvalidInput("schedule", "window %s-%s is outside a single day", start, end)
	}
	if end <= start {
		return Schedule{}, apperr.InvalidInput("schedule", "end time %s must be after start time %s", end, start)
	}
	return Schedule{Day: dayOfWeek, Start: start, End: end}, nil
}

func (s Schedule) Equal(o Schedule) bool {
	return s == o
}

// Contains reports whether [start,end) time-of-day lies inside the window.
func (s Schedule) Contains(start, end TimeOfDay) bool {
	return start >= s.Start && end <= s.End
}

func (s Schedule) String() string {
	return s.Start.String() + "-" + s.End.String()
}

// Walker is the availability side of a walker profile: the recurring windows
// and how many bookings the walker accepts per calendar day.
type Walker struct {
	ID                string
	Schedules         []Schedule
	DailyBookingLimit int
}

// WindowsOn returns the windows for weekday ordered by start time.
func (w *Walker) WindowsOn(weekday time.Weekday) []Schedule {
	var out []Schedule
	for _, s := range w.Schedules {
		if s.Day == weekday {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start == out[j].Start {
			return out[i].End < out[j].End
		}
		return out[i].Start < out[j].Start
	})
	return out
}

func FormatWindows(windows []Schedule) string {
	parts := make([]string, 0, len(windows))
	for _, w := range windows {
		parts = append(parts, w.String())
	}
	return strings.Join(parts, ", ")
}
