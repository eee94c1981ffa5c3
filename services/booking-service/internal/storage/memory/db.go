// Package memory is an in-process Store. Transactions are serialized by a
// single mutex and stage their writes until commit, so an aborted or cancelled
// transaction leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/service"
)

type DB struct {
	mu       sync.Mutex
	walkers  map[string]schedule.Walker
	bookings map[string]stored
	events   []booking.Event
}

type stored struct {
	b      booking.Booking
	status booking.Status
}

func New() *DB {
	return &DB{
		walkers:  make(map[string]schedule.Walker),
		bookings: make(map[string]stored),
	}
}

var _ service.Store = (*DB)(nil)

// PutWalker inserts or replaces a walker projection.
func (db *DB) PutWalker(w schedule.Walker) {
	db.mu.Lock()
	defer db.mu.Unlock()
	w.Schedules = append([]schedule.Schedule(nil), w.Schedules...)
	db.walkers[w.ID] = w
}

func (db *DB) UpsertWalker(_ context.Context, w schedule.Walker) error {
	db.PutWalker(w)
	return nil
}

// Events returns the events drained from persisted bookings, oldest first.
func (db *DB) Events() []booking.Event {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]booking.Event(nil), db.events...)
}

func (db *DB) GetWalker(_ context.Context, walkerID string) (*schedule.Walker, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.walker(walkerID)
}

func (db *DB) GetBooking(_ context.Context, bookingID string) (*booking.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.bookings[bookingID]
	if !ok {
		return nil, apperr.NotFound("booking", bookingID)
	}
	return s.restore(), nil
}

func (db *DB) ListByWalker(_ context.Context, walkerID string, from, to time.Time) ([]*booking.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.filter(db.bookings, func(b *booking.Booking) bool {
		return b.WalkerID == walkerID && b.Overlaps(from, to)
	}), nil
}

func (db *DB) ListByClient(_ context.Context, clientID string, from, to time.Time) ([]*booking.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.filter(db.bookings, func(b *booking.Booking) bool {
		return b.ClientID == clientID && b.Overlaps(from, to)
	}), nil
}

func (db *DB) ListOverlapping(ctx context.Context, walkerID string, start, end time.Time) ([]*booking.Booking, error) {
	return db.ListByWalker(ctx, walkerID, start, end)
}

func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx service.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &transaction{db: db, staged: make(map[string]stored)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, s := range tx.staged {
		db.bookings[id] = s
	}
	db.events = append(db.events, tx.events...)
	return nil
}

func (db *DB) walker(walkerID string) (*schedule.Walker, error) {
	w, ok := db.walkers[walkerID]
	if !ok {
		return nil, apperr.NotFound("walker", walkerID)
	}
	w.Schedules = append([]schedule.Schedule(nil), w.Schedules...)
	return &w, nil
}

func (db *DB) filter(src map[string]stored, keep func(*booking.Booking) bool) []*booking.Booking {
	var out []*booking.Booking
	for _, s := range src {
		b := s.restore()
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func (s stored) restore() *booking.Booking {
	return booking.Restore(s.b, s.status)
}

func snapshot(b *booking.Booking) stored {
	return stored{b: *booking.Restore(*b, b.Status()), status: b.Status()}
}

// transaction runs with db.mu held by InTx.
type transaction struct {
	db     *DB
	staged map[string]stored
	events []booking.Event
}

func (tx *transaction) LockWalker(_ context.Context, walkerID string) (*schedule.Walker, error) {
	return tx.db.walker(walkerID)
}

func (tx *transaction) ListOverlapping(_ context.Context, walkerID string, start, end time.Time) ([]*booking.Booking, error) {
	return tx.db.filter(tx.view(), func(b *booking.Booking) bool {
		return b.WalkerID == walkerID && b.Overlaps(start, end)
	}), nil
}

func (tx *transaction) GetBookingForUpdate(_ context.Context, bookingID string) (*booking.Booking, error) {
	if s, ok := tx.staged[bookingID]; ok {
		return s.restore(), nil
	}
	s, ok := tx.db.bookings[bookingID]
	if !ok {
		return nil, apperr.NotFound("booking", bookingID)
	}
	return s.restore(), nil
}

// Add mirrors the Postgres exclusion constraint: a blocking booking may not
// overlap another blocking booking of the same walker.
func (tx *transaction) Add(_ context.Context, b *booking.Booking) error {
	if b.Status().Blocking() {
		for _, s := range tx.view() {
			other := s.restore()
			if other.WalkerID == b.WalkerID && other.Status().Blocking() && other.Overlaps(b.StartTime, b.EndTime) {
				return apperr.Conflict(nil, "time slot already booked")
			}
		}
	}
	tx.staged[b.ID] = snapshot(b)
	tx.events = append(tx.events, b.PullEvents()...)
	return nil
}

func (tx *transaction) Update(_ context.Context, b *booking.Booking) error {
	if _, err := tx.GetBookingForUpdate(context.Background(), b.ID); err != nil {
		return err
	}
	tx.staged[b.ID] = snapshot(b)
	tx.events = append(tx.events, b.PullEvents()...)
	return nil
}

func (tx *transaction) view() map[string]stored {
	merged := make(map[string]stored, len(tx.db.bookings)+len(tx.staged))
	for id, s := range tx.db.bookings {
		merged[id] = s
	}
	for id, s := range tx.staged {
		merged[id] = s
	}
	return merged
}
