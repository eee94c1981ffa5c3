package booking

import "time"

const (
	EventCreated   = "booking.created.v1"
	EventConfirmed = "booking.confirmed.v1"
	EventStarted   = "booking.started.v1"
	EventCompleted = "booking.completed.v1"
	EventCancelled = "booking.cancelled.v1"
	EventNoShow    = "booking.no_show.v1"
)

// Event is a domain event recorded on the entity. The booking never dispatches
// events itself; the store drains them into the outbox in the same transaction
// that persists the state change.
type Event struct {
	Type       string    `json:"event_type"`
	BookingID  string    `json:"booking_id"`
	WalkerID   string    `json:"walker_id"`
	ClientID   string    `json:"client_id"`
	Status     Status    `json:"status"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
