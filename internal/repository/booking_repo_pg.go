package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CancelCommand is everything a cancellation writes locally before any money
// moves: the booking transition, the payment's pending sub-status, the
// settlement op and an optional credit.
type CancelCommand struct {
	BookingID   string
	From        domain.BookingStatus
	To          domain.BookingStatus
	Cause       string
	Reason      string
	CancelledBy string
	CancelledAt time.Time
	Op          *domain.EscrowOp
	Credit      *domain.CustomerCredit
	OpLease     time.Duration
}

type BookingRepository interface {
	CreateWithClaim(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	Transition(ctx context.Context, id string, from, to domain.BookingStatus) (*domain.Booking, error)
	RecordTakeoff(ctx context.Context, id string, from domain.BookingStatus, event *domain.FlightEvent) (*domain.Booking, error)
	RecordLanding(ctx context.Context, id string, event *domain.FlightEvent) (*domain.Booking, error)
	Cancel(ctx context.Context, cmd CancelCommand) (*domain.Booking, error)
	ListDeparting(ctx context.Context, from, to time.Time, limit int) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, customer_id, pilot_id, slot_id, from_airport, to_airport, scheduled_at, passengers,
	total_price_cents, platform_fee_cents, pilot_payout_cents, status,
	takeoff_at, takeoff_lat, takeoff_lng, landing_at, landing_lat, landing_lng, landing_photo,
	cancellation_cause, cancellation_reason, cancelled_at, cancelled_by, created_at, updated_at`

// CreateWithClaim claims one available pilot slot covering the scheduled time
// and inserts the booking and its held payment in the same transaction.
// Either all three rows change or none do.
func (r *PGBookingRepository) CreateWithClaim(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var slotID, pilotID string
	err = tx.QueryRow(ctx, `
		UPDATE pilot_slots SET status = 'booked', booking_id = $1, updated_at = now()
		WHERE id = (
			SELECT id FROM pilot_slots
			WHERE slot_date = $2::date AND status = 'available'
				AND start_time <= $3::time AND end_time >= $3::time
			ORDER BY start_time
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'available'
		RETURNING id, pilot_id`,
		booking.ID, booking.ScheduledAt.Format(time.DateOnly), booking.ScheduledAt.Format(time.TimeOnly),
	).Scan(&slotID, &pilotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNoPilotAvailable
		}
		return fmt.Errorf("claim pilot slot: %w", err)
	}
	booking.SlotID = &slotID
	booking.PilotID = &pilotID
	payment.PilotID = &pilotID

	booking.Status = domain.BookingStatusPending
	if err := tx.QueryRow(ctx, `
		INSERT INTO bookings (id, customer_id, pilot_id, slot_id, from_airport, to_airport, scheduled_at, passengers,
			total_price_cents, platform_fee_cents, pilot_payout_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		booking.ID, booking.CustomerID, booking.PilotID, booking.SlotID, booking.FromAirport, booking.ToAirport,
		booking.ScheduledAt, booking.Passengers, booking.TotalPriceCents, booking.PlatformFee, booking.PilotPayout, booking.Status,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	payment.Status = domain.PaymentStatusHeld
	if err := tx.QueryRow(ctx, `
		INSERT INTO payments (id, booking_id, customer_id, pilot_id, amount_cents, platform_fee_cents, pilot_payout_cents, status, hold_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		payment.ID, payment.BookingID, payment.CustomerID, payment.PilotID, payment.Amount, payment.PlatformFee,
		payment.PilotPayout, payment.Status, payment.HoldRef,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

// Transition moves the booking from -> to only if it is still in from.
func (r *PGBookingRepository) Transition(ctx context.Context, id string, from, to domain.BookingStatus) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `
		UPDATE bookings SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+bookingColumns, id, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: booking %s is no longer %s", domain.ErrInvalidTransition, id, from)
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) RecordTakeoff(ctx context.Context, id string, from domain.BookingStatus, event *domain.FlightEvent) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := insertFlightEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	b, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings SET status = $4, takeoff_at = $5, takeoff_lat = $6, takeoff_lng = $7, updated_at = now()
		WHERE id = $1 AND status = $2 AND pilot_id = $3
		RETURNING `+bookingColumns,
		id, from, event.PilotID, domain.BookingStatusInFlight, event.RecordedAt, event.Latitude, event.Longitude))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: booking %s is no longer %s", domain.ErrInvalidTransition, id, from)
		}
		return nil, err
	}

	return b, tx.Commit(ctx)
}

func (r *PGBookingRepository) RecordLanding(ctx context.Context, id string, event *domain.FlightEvent) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := insertFlightEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	b, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings SET status = $4, landing_at = $5, landing_lat = $6, landing_lng = $7, landing_photo = $8, updated_at = now()
		WHERE id = $1 AND status = $2 AND pilot_id = $3
		RETURNING `+bookingColumns,
		id, domain.BookingStatusInFlight, event.PilotID, domain.BookingStatusCompleted,
		event.RecordedAt, event.Latitude, event.Longitude, event.PhotoRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: booking %s is not in flight", domain.ErrInvalidTransition, id)
		}
		return nil, err
	}

	return b, tx.Commit(ctx)
}

// Cancel applies the whole local half of a cancellation atomically. The
// payment must still be held; the settlement op it inserts is leased for
// cmd.OpLease so the caller can execute it before reconciliation sees it.
func (r *PGBookingRepository) Cancel(ctx context.Context, cmd CancelCommand) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	b, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings SET status = $3, cancellation_cause = $4, cancellation_reason = $5,
			cancelled_at = $6, cancelled_by = $7, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+bookingColumns,
		cmd.BookingID, cmd.From, cmd.To, cmd.Cause, cmd.Reason, cmd.CancelledAt, cmd.CancelledBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: booking %s is no longer %s", domain.ErrInvalidTransition, cmd.BookingID, cmd.From)
		}
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE payments SET status = $3, refund_reason = $4, updated_at = now()
		WHERE booking_id = $1 AND status = $2`,
		cmd.BookingID, domain.PaymentStatusHeld, domain.PaymentStatusRefundPending, cmd.Reason)
	if err != nil {
		return nil, fmt.Errorf("mark payment refund pending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: payment for booking %s is not held", domain.ErrInvalidTransition, cmd.BookingID)
	}

	if err := insertEscrowOp(ctx, tx, cmd.Op, cmd.OpLease); err != nil {
		return nil, err
	}

	if cmd.Credit != nil {
		if err := insertCredit(ctx, tx, cmd.Credit); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE pilot_slots SET status = 'available', booking_id = NULL, updated_at = now()
		WHERE booking_id = $1`, cmd.BookingID); err != nil {
		return nil, fmt.Errorf("release pilot slot: %w", err)
	}

	return b, tx.Commit(ctx)
}

// ListDeparting returns active bookings scheduled in [from, to).
func (r *PGBookingRepository) ListDeparting(ctx context.Context, from, to time.Time, limit int) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status IN ($1, $2) AND scheduled_at >= $3 AND scheduled_at < $4
		ORDER BY scheduled_at
		LIMIT $5`,
		domain.BookingStatusPending, domain.BookingStatusConfirmed, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(
		&b.ID, &b.CustomerID, &b.PilotID, &b.SlotID, &b.FromAirport, &b.ToAirport, &b.ScheduledAt, &b.Passengers,
		&b.TotalPriceCents, &b.PlatformFee, &b.PilotPayout, &b.Status,
		&b.TakeoffAt, &b.TakeoffLat, &b.TakeoffLng, &b.LandingAt, &b.LandingLat, &b.LandingLng, &b.LandingPhoto,
		&b.CancellationCause, &b.CancellationReason, &b.CancelledAt, &b.CancelledBy, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ BookingRepository = (*PGBookingRepository)(nil)
