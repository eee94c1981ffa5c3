package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
)

// maxStart is the latest start time accepted.
var maxStart = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Booking is a walk appointment. Status only changes through the verbs below.
type Booking struct {
	ID         string
	WalkerID   string
	ClientID   string
	StartTime  time.Time
	EndTime    time.Time
	PriceCents int64
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	status Status
	events []Event
}

// Restore rebuilds a persisted booking. It records no events.
func Restore(b Booking, status Status) *Booking {
	b.status = status
	b.events = nil
	return &b
}

// ValidateInterval checks the candidate times on their own: a future start and
// a positive length.
func ValidateInterval(start, end, now time.Time) error {
	if start.IsZero() || !start.After(now) {
		return apperr.InvalidInput("start_time", "start time %s must be in the future", start.Format(time.RFC3339))
	}
	if !start.Before(maxStart) {
		return apperr.InvalidInput("start_time", "start time %s is out of range", start.Format(time.RFC3339))
	}
	if !end.After(start) {
		return apperr.InvalidInput("end_time", "end time %s must be after start time %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}

// New creates a pending booking. Conflict and limit rules are evaluated by the
// caller against the walker's existing bookings before New is called.
func New(walker *schedule.Walker, clientID string, start, end time.Time, priceCents int64, notes string, now time.Time) (*Booking, error) {
	if walker == nil {
		return nil, apperr.InvalidInput("walker", "walker is required")
	}
	if strings.TrimSpace(walker.ID) == "" {
		return nil, apperr.InvalidInput("walker_id", "walker id is required")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, apperr.InvalidInput("client_id", "client id is required")
	}
	if err := ValidateInterval(start, end, now); err != nil {
		return nil, err
	}
	if priceCents <= 0 {
		return nil, apperr.InvalidInput("price", "price must be greater than zero")
	}
	if len(walker.Schedules) == 0 {
		return nil, apperr.InvalidInput("schedule", "walker %s has no availability configured", walker.ID)
	}

	b := &Booking{
		ID:         uuid.NewString(),
		WalkerID:   walker.ID,
		ClientID:   clientID,
		StartTime:  start,
		EndTime:    end,
		PriceCents: priceCents,
		Notes:      strings.TrimSpace(notes),
		CreatedAt:  now,
		UpdatedAt:  now,
		status:     StatusPending,
	}
	b.record(EventCreated, "", now)
	return b, nil
}

func (b *Booking) Status() Status {
	return b.status
}

// Overlaps uses half-open intervals: touching endpoints do not overlap.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

func (b *Booking) Confirm(now time.Time) error {
	return b.transition(StatusConfirmed, EventConfirmed, "", now)
}

func (b *Booking) BeginWalk(now time.Time) error {
	return b.transition(StatusInProgress, EventStarted, "", now)
}

func (b *Booking) Complete(now time.Time) error {
	return b.transition(StatusCompleted, EventCompleted, "", now)
}

// Cancel stores reason in the notes.
func (b *Booking) Cancel(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if err := b.transition(StatusCancelled, EventCancelled, reason, now); err != nil {
		return err
	}
	if reason != "" {
		b.appendNote("Cancelled: " + reason)
	}
	return nil
}

func (b *Booking) MarkNoShow(now time.Time) error {
	return b.transition(StatusNoShow, EventNoShow, "", now)
}

// Apply moves the booking to target using the verb that owns that transition.
func (b *Booking) Apply(target Status, notes string, now time.Time) error {
	var err error
	switch target {
	case StatusConfirmed:
		err = b.Confirm(now)
	case StatusInProgress:
		err = b.BeginWalk(now)
	case StatusCompleted:
		err = b.Complete(now)
	case StatusCancelled:
		return b.Cancel(notes, now)
	case StatusNoShow:
		err = b.MarkNoShow(now)
	default:
		return apperr.InvalidInput("status", "status %q cannot be set directly", target)
	}
	if err != nil {
		return err
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		b.appendNote(notes)
	}
	return nil
}

// PendingEvents returns a copy of the recorded events without draining them.
func (b *Booking) PendingEvents() []Event {
	return append([]Event(nil), b.events...)
}

// PullEvents drains the recorded events.
func (b *Booking) PullEvents() []Event {
	out := b.events
	b.events = nil
	return out
}

func (b *Booking) transition(to Status, eventType, reason string, now time.Time) error {
	if !b.status.CanTransitionTo(to) {
		return apperr.InvalidOperation("booking %s cannot move from %s to %s", b.ID, b.status, to)
	}
	b.status = to
	b.UpdatedAt = now
	b.record(eventType, reason, now)
	return nil
}

func (b *Booking) record(eventType, reason string, now time.Time) {
	b.events = append(b.events, Event{
		Type:       eventType,
		BookingID:  b.ID,
		WalkerID:   b.WalkerID,
		ClientID:   b.ClientID,
		Status:     b.status,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		Reason:     reason,
		OccurredAt: now,
	})
}

func (b *Booking) appendNote(note string) {
	if b.Notes == "" {
		b.Notes = note
		return
	}
	b.Notes += "\n" + note
}
