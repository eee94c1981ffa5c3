// Package rules holds the pure checks a candidate walk must pass before it is
// booked. Each check sees the candidate, the walker's schedule and the walker's
// existing bookings; none of them touch storage.
package rules

import (
	"time"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
)

const (
	RuleSchedule   = "schedule"
	RuleOverlap    = "overlap"
	RuleDailyLimit = "daily_limit"
)

// Candidate is a proposed walk. Its calendar day and time of day are taken in
// Start's location.
type Candidate struct {
	Start time.Time
	End   time.Time
}

// Evaluate runs schedule, overlap and daily limit in that order and returns the
// first violation.
func Evaluate(c Candidate, walker *schedule.Walker, existing []*booking.Booking) error {
	if err := CheckSchedule(c, walker.Schedules); err != nil {
		return err
	}
	if err := CheckOverlap(c, existing); err != nil {
		return err
	}
	return CheckDailyLimit(c, walker.DailyBookingLimit, existing)
}

// CheckSchedule requires the candidate to fit inside a single window on its day.
// Adjacent windows are not merged.
func CheckSchedule(c Candidate, schedules []schedule.Schedule) error {
	weekday := c.Start.Weekday()
	w := schedule.Walker{Schedules: schedules}
	windows := w.WindowsOn(weekday)
	if len(windows) == 0 {
		return apperr.InvalidInput(RuleSchedule, "walker is not available on %s", weekday)
	}

	start := schedule.Of(c.Start)
	end := schedule.Since(c.Start, c.End)
	for _, win := range windows {
		if win.Contains(start, end) {
			return nil
		}
	}
	return apperr.InvalidInput(RuleSchedule, "requested time %s-%s is outside walker availability on %s; available windows: %s",
		start, end, weekday, schedule.FormatWindows(windows))
}

func CheckOverlap(c Candidate, existing []*booking.Booking) error {
	for _, b := range existing {
		if !b.Status().Blocking() {
			continue
		}
		if b.Overlaps(c.Start, c.End) {
			return apperr.InvalidInput(RuleOverlap, "walker already has a booking from %s to %s",
				b.StartTime.Format(time.RFC3339), b.EndTime.Format(time.RFC3339))
		}
	}
	return nil
}

// CheckDailyLimit counts blocking bookings that start on the candidate's
// calendar day.
func CheckDailyLimit(c Candidate, limit int, existing []*booking.Booking) error {
	y, m, d := c.Start.Date()
	count := 0
	for _, b := range existing {
		if !b.Status().Blocking() {
			continue
		}
		by, bm, bd := b.StartTime.In(c.Start.Location()).Date()
		if by == y && bm == m && bd == d {
			count++
		}
	}
	if count >= limit {
		return apperr.InvalidInput(RuleDailyLimit, "walker accepts at most %d bookings per day and already has %d on %s",
			limit, count, c.Start.Format("2006-01-02"))
	}
	return nil
}

// ContextWindow is the range of existing bookings the rules need to see: the
// whole calendar day of the candidate, extended to cover the candidate itself.
func ContextWindow(c Candidate) (time.Time, time.Time) {
	from := schedule.StartOfDay(c.Start)
	to := from.AddDate(0, 0, 1)
	if c.End.After(to) {
		to = c.End
	}
	return from, to
}
