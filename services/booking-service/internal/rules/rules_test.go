package rules

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
)

// 2024-06-01 is a Saturday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}

func walker(limit int) *schedule.Walker {
	return &schedule.Walker{
		ID:                "walker-1",
		DailyBookingLimit: limit,
		Schedules: []schedule.Schedule{
			{Day: time.Saturday, Start: schedule.At(9, 0), End: schedule.At(12, 0)},
			{Day: time.Saturday, Start: schedule.At(12, 0), End: schedule.At(15, 0)},
			{Day: time.Sunday, Start: schedule.At(8, 0), End: schedule.At(18, 0)},
		},
	}
}

func existing(start, end time.Time, status booking.Status) *booking.Booking {
	return booking.Restore(booking.Booking{
		ID:         "b-" + start.Format("0215"),
		WalkerID:   "walker-1",
		ClientID:   "client-9",
		StartTime:  start,
		EndTime:    end,
		PriceCents: 1000,
	}, status)
}

func TestCheckSchedule(t *testing.T) {
	w := walker(5)
	cases := []struct {
		name string
		c    Candidate
		ok   bool
	}{
		{"inside window", Candidate{at(1, 9, 0), at(1, 10, 0)}, true},
		{"exactly window", Candidate{at(1, 9, 0), at(1, 12, 0)}, true},
		{"starts before window", Candidate{at(1, 8, 30), at(1, 9, 30)}, false},
		{"spans two adjacent windows", Candidate{at(1, 11, 30), at(1, 12, 30)}, false},
		{"no window that day", Candidate{at(3, 10, 0), at(3, 11, 0)}, false},
		{"crosses midnight", Candidate{at(1, 23, 30), at(2, 0, 30)}, false},
	}
	for _, tc := range cases {
		err := CheckSchedule(tc.c, w.Schedules)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && apperr.RuleOf(err) != RuleSchedule {
			t.Fatalf("%s: expected schedule violation, got %v", tc.name, err)
		}
	}
}

func TestCheckSchedule_UsesWallClockOnDSTDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	schedules := []schedule.Schedule{{Day: time.Sunday, Start: schedule.At(9, 0), End: schedule.At(11, 30)}}
	// 2024-03-10 (spring forward) and 2024-11-03 (fall back) are Sundays.
	for _, d := range []int{10, 3} {
		month := time.March
		if d == 3 {
			month = time.November
		}
		ok := Candidate{time.Date(2024, month, d, 9, 0, 0, 0, ny), time.Date(2024, month, d, 10, 0, 0, 0, ny)}
		if err := CheckSchedule(ok, schedules); err != nil {
			t.Fatalf("%s: 09:00-10:00 should fit, got %v", month, err)
		}
		late := Candidate{time.Date(2024, month, d, 10, 45, 0, 0, ny), time.Date(2024, month, d, 11, 45, 0, 0, ny)}
		if apperr.RuleOf(CheckSchedule(late, schedules)) != RuleSchedule {
			t.Fatalf("%s: 10:45-11:45 should not fit", month)
		}
	}
}

func TestCheckSchedule_MessageListsWindows(t *testing.T) {
	err := CheckSchedule(Candidate{at(1, 16, 0), at(1, 17, 0)}, walker(5).Schedules)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "09:00-12:00, 12:00-15:00") {
		t.Fatalf("expected available windows in message, got %q", err.Error())
	}
}

func TestCheckOverlap_HalfOpen(t *testing.T) {
	booked := []*booking.Booking{existing(at(1, 10, 0), at(1, 11, 0), booking.StatusConfirmed)}

	if err := CheckOverlap(Candidate{at(1, 11, 0), at(1, 12, 0)}, booked); err != nil {
		t.Fatalf("touching interval should pass: %v", err)
	}
	if err := CheckOverlap(Candidate{at(1, 9, 0), at(1, 10, 0)}, booked); err != nil {
		t.Fatalf("touching interval should pass: %v", err)
	}
	for _, c := range []Candidate{
		{at(1, 10, 30), at(1, 11, 30)},
		{at(1, 9, 30), at(1, 10, 30)},
		{at(1, 10, 15), at(1, 10, 45)},
		{at(1, 9, 0), at(1, 12, 0)},
	} {
		if err := CheckOverlap(c, booked); apperr.RuleOf(err) != RuleOverlap {
			t.Fatalf("candidate %s-%s: expected overlap violation, got %v", c.Start, c.End, err)
		}
	}
}

func TestCheckOverlap_IgnoresCancelledAndCompleted(t *testing.T) {
	booked := []*booking.Booking{
		existing(at(1, 10, 0), at(1, 11, 0), booking.StatusCancelled),
		existing(at(1, 10, 0), at(1, 11, 0), booking.StatusCompleted),
	}
	if err := CheckOverlap(Candidate{at(1, 10, 0), at(1, 11, 0)}, booked); err != nil {
		t.Fatalf("expected no overlap, got %v", err)
	}
}

func TestCheckDailyLimit(t *testing.T) {
	booked := []*booking.Booking{
		existing(at(1, 9, 0), at(1, 10, 0), booking.StatusPending),
		existing(at(1, 13, 0), at(1, 14, 0), booking.StatusConfirmed),
		existing(at(1, 14, 0), at(1, 15, 0), booking.StatusCancelled),
	}

	err := CheckDailyLimit(Candidate{at(1, 10, 0), at(1, 11, 0)}, 2, booked)
	if apperr.RuleOf(err) != RuleDailyLimit {
		t.Fatalf("expected daily limit violation, got %v", err)
	}
	if !strings.Contains(err.Error(), "at most 2") {
		t.Fatalf("expected limit in message, got %q", err.Error())
	}
	if err := CheckDailyLimit(Candidate{at(2, 10, 0), at(2, 11, 0)}, 2, booked); err != nil {
		t.Fatalf("next day should pass: %v", err)
	}
	if err := CheckDailyLimit(Candidate{at(1, 10, 0), at(1, 11, 0)}, 3, booked); err != nil {
		t.Fatalf("under limit should pass: %v", err)
	}
}

func TestEvaluate_FirstViolationWins(t *testing.T) {
	w := walker(1)
	booked := []*booking.Booking{existing(at(1, 10, 0), at(1, 11, 0), booking.StatusPending)}

	// Outside the schedule and overlapping: schedule is reported.
	if err := Evaluate(Candidate{at(1, 8, 0), at(1, 10, 30)}, w, booked); apperr.RuleOf(err) != RuleSchedule {
		t.Fatalf("expected schedule violation, got %v", err)
	}
	// Inside the schedule, overlapping and over the limit: overlap is reported.
	if err := Evaluate(Candidate{at(1, 10, 30), at(1, 11, 30)}, w, booked); apperr.RuleOf(err) != RuleOverlap {
		t.Fatalf("expected overlap violation, got %v", err)
	}
	// Free time but over the limit.
	if err := Evaluate(Candidate{at(1, 13, 0), at(1, 14, 0)}, w, booked); apperr.RuleOf(err) != RuleDailyLimit {
		t.Fatalf("expected daily limit violation, got %v", err)
	}
}

func TestContextWindow(t *testing.T) {
	from, to := ContextWindow(Candidate{at(1, 10, 0), at(1, 11, 0)})
	if !from.Equal(at(1, 0, 0)) || !to.Equal(at(2, 0, 0)) {
		t.Fatalf("unexpected window %s - %s", from, to)
	}
	_, to = ContextWindow(Candidate{at(1, 23, 0), at(2, 1, 0)})
	if !to.Equal(at(2, 1, 0)) {
		t.Fatalf("expected window extended to candidate end, got %s", to)
	}
}
