package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/rules"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SlotSize is the length of the fixed slots returned by GetAvailableTimeSlots.
const SlotSize = time.Hour

type BookingService struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

type Option func(*BookingService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *BookingService) { s.now = now }
}

func NewBookingService(store Store, logger *slog.Logger, opts ...Option) *BookingService {
	s := &BookingService{
		store:  store,
		logger: logger,
		now:    time.Now,
		tracer: otel.Tracer("booking-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateBookingRequest struct {
	WalkerID   string
	ClientID   string
	StartTime  time.Time
	EndTime    time.Time
	PriceCents int64
	Notes      string
}

// CreateBooking checks the candidate against the walker's schedule, existing bookings
// and daily limit, then inserts it. Check and insert share one transaction that holds
// the walker lock, so concurrent requests for the same walker cannot both pass.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (_ *booking.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.String("walker.id", req.WalkerID),
		attribute.String("client.id", req.ClientID),
	))
	defer func() { endSpan(span, err) }()

	var created *booking.Booking
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		walker, err := tx.LockWalker(ctx, req.WalkerID)
		if err != nil {
			return err
		}
		b, err := booking.New(walker, req.ClientID, req.StartTime, req.EndTime, req.PriceCents, req.Notes, s.now())
		if err != nil {
			return err
		}
		candidate := rules.Candidate{Start: b.StartTime, End: b.EndTime}
		from, to := rules.ContextWindow(candidate)
		existing, err := tx.ListOverlapping(ctx, walker.ID, from, to)
		if err != nil {
			return fmt.Errorf("list walker bookings: %w", err)
		}
		if err := rules.Evaluate(candidate, walker, existing); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tx.Add(ctx, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidInput) || apperr.Is(err, apperr.KindConflict) {
			s.logger.Warn("booking rejected", "walker_id", req.WalkerID, "client_id", req.ClientID, "rule", apperr.RuleOf(err), "err", err)
		}
		return nil, err
	}
	s.logger.Info("booking created", "booking_id", created.ID, "walker_id", created.WalkerID,
		"start_time", created.StartTime.Format(time.RFC3339), "end_time", created.EndTime.Format(time.RFC3339))
	return created, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (_ *booking.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.get", trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(bookingID) == "" {
		return nil, apperr.InvalidInput("booking_id", "booking id is required")
	}
	return s.store.GetBooking(ctx, bookingID)
}

func (s *BookingService) GetWalkerBookings(ctx context.Context, walkerID string, from, to time.Time) (_ []*booking.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.list_walker", trace.WithAttributes(attribute.String("walker.id", walkerID)))
	defer func() { endSpan(span, err) }()

	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.store.ListByWalker(ctx, walkerID, from, to)
}

func (s *BookingService) GetClientBookings(ctx context.Context, clientID string, from, to time.Time) (_ []*booking.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.list_client", trace.WithAttributes(attribute.String("client.id", clientID)))
	defer func() { endSpan(span, err) }()

	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.store.ListByClient(ctx, clientID, from, to)
}

// UpdateBookingStatus moves a booking to status through the matching lifecycle verb.
// notes is the cancellation reason when status is cancelled.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, bookingID string, status booking.Status, notes string) (_ *booking.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.update_status", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.String("booking.status", string(status)),
	))
	defer func() { endSpan(span, err) }()

	var updated *booking.Booking
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := b.Apply(status, notes, s.now()); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking status changed", "booking_id", updated.ID, "status", string(updated.Status()))
	return updated, nil
}

// CanBookTimeSlot runs the creation checks without writing anything. Rule
// violations and unknown walkers yield false; only store failures return an error.
func (s *BookingService) CanBookTimeSlot(ctx context.Context, walkerID string, start, end time.Time) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "booking.can_book", trace.WithAttributes(attribute.String("walker.id", walkerID)))
	defer span.End()

	err := s.probe(ctx, walkerID, start, end)
	switch {
	case err == nil:
		return true, nil
	case apperr.Is(err, apperr.KindInvalidInput), apperr.Is(err, apperr.KindNotFound):
		span.SetAttributes(attribute.String("booking.rule", apperr.RuleOf(err)))
		return false, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
}

func (s *BookingService) probe(ctx context.Context, walkerID string, start, end time.Time) error {
	walker, err := s.store.GetWalker(ctx, walkerID)
	if err != nil {
		return err
	}
	if err := booking.ValidateInterval(start, end, s.now()); err != nil {
		return err
	}
	candidate := rules.Candidate{Start: start, End: end}
	from, to := rules.ContextWindow(candidate)
	existing, err := s.store.ListOverlapping(ctx, walker.ID, from, to)
	if err != nil {
		return fmt.Errorf("list walker bookings: %w", err)
	}
	return rules.Evaluate(candidate, walker, existing)
}

// GetAvailableTimeSlots returns the free one-hour slots of date.
func (s *BookingService) GetAvailableTimeSlots(ctx context.Context, walkerID string, date time.Time) (_ []availability.Slot, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.available_slots", trace.WithAttributes(attribute.String("walker.id", walkerID)))
	defer func() { endSpan(span, err) }()

	walker, busy, err := s.dayContext(ctx, walkerID, date)
	if err != nil {
		return nil, err
	}
	return availability.FixedSlots(date, walker.Schedules, busy, SlotSize), nil
}

// GetFreeWindows returns the gaps of arbitrary length left in date's schedule windows.
func (s *BookingService) GetFreeWindows(ctx context.Context, walkerID string, date time.Time) (_ []availability.Slot, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.free_windows", trace.WithAttributes(attribute.String("walker.id", walkerID)))
	defer func() { endSpan(span, err) }()

	walker, busy, err := s.dayContext(ctx, walkerID, date)
	if err != nil {
		return nil, err
	}
	return availability.FreeWindows(date, walker.Schedules, busy), nil
}

// dayContext loads the walker and the busy intervals for date. It is rebuilt on
// every call.
func (s *BookingService) dayContext(ctx context.Context, walkerID string, date time.Time) (*schedule.Walker, []availability.Interval, error) {
	walker, err := s.store.GetWalker(ctx, walkerID)
	if err != nil {
		return nil, nil, err
	}
	from := schedule.StartOfDay(date)
	to := from.AddDate(0, 0, 1)
	existing, err := s.store.ListOverlapping(ctx, walker.ID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list walker bookings: %w", err)
	}
	busy := make([]availability.Interval, 0, len(existing))
	for _, b := range existing {
		if b.Status().Blocking() {
			busy = append(busy, availability.Interval{Start: b.StartTime, End: b.EndTime})
		}
	}
	return walker, busy, nil
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return apperr.InvalidInput("range", "to must be after from")
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
