package service

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
)

// Store is the walker and booking persistence the service runs against.
// Missing walkers and bookings are reported as apperr NotFound; anything else
// is a store failure.
type Store interface {
	GetWalker(ctx context.Context, walkerID string) (*schedule.Walker, error)
	GetBooking(ctx context.Context, bookingID string) (*booking.Booking, error)
	// ListByWalker and ListByClient return bookings overlapping [from, to) ordered by start time.
	ListByWalker(ctx context.Context, walkerID string, from, to time.Time) ([]*booking.Booking, error)
	ListByClient(ctx context.Context, clientID string, from, to time.Time) ([]*booking.Booking, error)
	// ListOverlapping returns every booking of the walker overlapping [start, end),
	// whatever its status, ordered by start time.
	ListOverlapping(ctx context.Context, walkerID string, start, end time.Time) ([]*booking.Booking, error)
	// InTx runs fn in one transaction. It commits only when fn returns nil and
	// ctx is still live.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional view used for check-then-act sequences.
type Tx interface {
	// LockWalker loads the walker and holds an exclusive lock on it until the
	// transaction ends, serializing bookings for that walker.
	LockWalker(ctx context.Context, walkerID string) (*schedule.Walker, error)
	ListOverlapping(ctx context.Context, walkerID string, start, end time.Time) ([]*booking.Booking, error)
	GetBookingForUpdate(ctx context.Context, bookingID string) (*booking.Booking, error)
	// Add and Update persist the booking and drain its pending events into the
	// event outbox.
	Add(ctx context.Context, b *booking.Booking) error
	Update(ctx context.Context, b *booking.Booking) error
}
