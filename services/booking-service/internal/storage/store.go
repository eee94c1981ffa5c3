// Package storage is the Postgres Store. The walkers and walker_schedules
// tables are a local projection of walker profiles; bookings and the event
// outbox live in the same database so state changes and their events commit
// together.
package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/pawwalk/libs/db"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/service"
)

//go:embed schema.sql
var schemaSQL string

const bookingColumns = `id::text, walker_id, client_id, start_time, end_time, status, price_cents, notes, created_at, updated_at`

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

var _ service.Store = (*Store)(nil)

// Migrate applies the idempotent schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) GetWalker(ctx context.Context, walkerID string) (*schedule.Walker, error) {
	return loadWalker(ctx, s.pool, walkerID, false)
}

func (s *Store) GetBooking(ctx context.Context, bookingID string) (*booking.Booking, error) {
	return getBooking(ctx, s.pool, bookingID, false)
}

func (s *Store) ListByWalker(ctx context.Context, walkerID string, from, to time.Time) ([]*booking.Booking, error) {
	return listBookings(ctx, s.pool, "walker_id", walkerID, from, to)
}

func (s *Store) ListByClient(ctx context.Context, clientID string, from, to time.Time) ([]*booking.Booking, error) {
	return listBookings(ctx, s.pool, "client_id", clientID, from, to)
}

func (s *Store) ListOverlapping(ctx context.Context, walkerID string, start, end time.Time) ([]*booking.Booking, error) {
	return listBookings(ctx, s.pool, "walker_id", walkerID, start, end)
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx service.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txStore{tx: tx, outbox: s.outbox}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if IsConflict(err) {
			return apperr.Conflict(err, "time slot already booked")
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpsertWalker replaces the walker row and its whole schedule set atomically.
func (s *Store) UpsertWalker(ctx context.Context, w schedule.Walker) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO walkers (id, daily_booking_limit)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET daily_booking_limit = EXCLUDED.daily_booking_limit,
			updated_at = now()
	`, w.ID, w.DailyBookingLimit); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM walker_schedules WHERE walker_id = $1`, w.ID); err != nil {
		return err
	}
	for _, sc := range w.Schedules {
		if _, err := tx.Exec(ctx, `
			INSERT INTO walker_schedules (walker_id, day_of_week, start_seconds, end_seconds)
			VALUES ($1, $2, $3, $4)
		`, w.ID, int(sc.Day), seconds(sc.Start), seconds(sc.End)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

type txStore struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

// LockWalker takes a row lock on the walker. Every booking insert for that
// walker goes through it, so check-then-insert sequences run one at a time.
func (t *txStore) LockWalker(ctx context.Context, walkerID string) (*schedule.Walker, error) {
	return loadWalker(ctx, t.tx, walkerID, true)
}

func (t *txStore) ListOverlapping(ctx context.Context, walkerID string, start, end time.Time) ([]*booking.Booking, error) {
	return listBookings(ctx, t.tx, "walker_id", walkerID, start, end)
}

func (t *txStore) GetBookingForUpdate(ctx context.Context, bookingID string) (*booking.Booking, error) {
	return getBooking(ctx, t.tx, bookingID, true)
}

func (t *txStore) Add(ctx context.Context, b *booking.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings
			(id, walker_id, client_id, start_time, end_time, status, price_cents, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.WalkerID, b.ClientID, b.StartTime, b.EndTime, string(b.Status()), b.PriceCents, b.Notes, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if IsConflict(err) {
			return apperr.Conflict(err, "time slot already booked")
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return t.writeEvents(ctx, b)
}

func (t *txStore) Update(ctx context.Context, b *booking.Booking) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2,
			notes = $3,
			updated_at = $4
		WHERE id = $1
	`, b.ID, string(b.Status()), b.Notes, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("booking", b.ID)
	}
	return t.writeEvents(ctx, b)
}

func (t *txStore) writeEvents(ctx context.Context, b *booking.Booking) error {
	for _, e := range b.PullEvents() {
		evt, err := outbox.FromBooking(e)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.Type, err)
		}
		if err := t.outbox.Insert(ctx, t.tx, evt); err != nil {
			return fmt.Errorf("outbox insert: %w", err)
		}
	}
	return nil
}

func loadWalker(ctx context.Context, q querier, walkerID string, lock bool) (*schedule.Walker, error) {
	sql := `SELECT id, daily_booking_limit FROM walkers WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var w schedule.Walker
	if err := q.QueryRow(ctx, sql, walkerID).Scan(&w.ID, &w.DailyBookingLimit); err != nil {
		if IsNotFound(err) {
			return nil, apperr.NotFound("walker", walkerID)
		}
		return nil, fmt.Errorf("load walker: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT day_of_week, start_seconds, end_seconds
		FROM walker_schedules
		WHERE walker_id = $1
		ORDER BY day_of_week, start_seconds
	`, walkerID)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day, start, end int
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, err
		}
		w.Schedules = append(w.Schedules, schedule.Schedule{
			Day:   time.Weekday(day),
			Start: fromSeconds(start),
			End:   fromSeconds(end),
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return &w, nil
}

// getBooking looks a booking up by primary key. Ids that are not UUIDs cannot
// exist and are reported as not found without a query.
func getBooking(ctx context.Context, q querier, bookingID string, lock bool) (*booking.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, apperr.NotFound("booking", bookingID)
	}
	sql := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	b, err := scanBooking(q.QueryRow(ctx, sql, id.String()))
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.NotFound("booking", bookingID)
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return b, nil
}

// listBookings returns bookings overlapping [from, to) for the given owner
// column, in start order. column is never user input.
func listBookings(ctx context.Context, q querier, column, id string, from, to time.Time) ([]*booking.Booking, error) {
	rows, err := q.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE `+column+` = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC, id ASC
	`, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []*booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*booking.Booking, error) {
	var b booking.Booking
	var status string
	if err := row.Scan(&b.ID, &b.WalkerID, &b.ClientID, &b.StartTime, &b.EndTime, &status,
		&b.PriceCents, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return booking.Restore(b, booking.Status(status)), nil
}

func seconds(t schedule.TimeOfDay) int {
	return int(time.Duration(t) / time.Second)
}

func fromSeconds(s int) schedule.TimeOfDay {
	return schedule.TimeOfDay(time.Duration(s) * time.Second)
}

// IsConflict reports an exclusion constraint violation (overlapping blocking bookings).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
