package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FlightEventRepository is the append-only flight log. Takeoff and landing
// rows are written by the booking repository inside the state transition.
type FlightEventRepository interface {
	Append(ctx context.Context, event *domain.FlightEvent) error
	ListByBooking(ctx context.Context, bookingID string) ([]domain.FlightEvent, error)
}

type PGFlightEventRepository struct {
	db *pgxpool.Pool
}

func NewFlightEventRepository(db *pgxpool.Pool) FlightEventRepository {
	return &PGFlightEventRepository{db: db}
}

func (r *PGFlightEventRepository) Append(ctx context.Context, event *domain.FlightEvent) error {
	return insertFlightEvent(ctx, r.db, event)
}

func (r *PGFlightEventRepository) ListByBooking(ctx context.Context, bookingID string) ([]domain.FlightEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, booking_id, pilot_id, type, latitude, longitude, altitude_ft, speed_kts, heading, photo_ref, recorded_at
		FROM flight_events WHERE booking_id = $1 ORDER BY recorded_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.FlightEvent, 0)
	for rows.Next() {
		var e domain.FlightEvent
		if err := rows.Scan(&e.ID, &e.BookingID, &e.PilotID, &e.Type, &e.Latitude, &e.Longitude,
			&e.AltitudeFt, &e.SpeedKts, &e.Heading, &e.PhotoRef, &e.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertFlightEvent(ctx context.Context, db execer, e *domain.FlightEvent) error {
	_, err := db.Exec(ctx, `
		INSERT INTO flight_events (id, booking_id, pilot_id, type, latitude, longitude, altitude_ft, speed_kts, heading, photo_ref, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.BookingID, e.PilotID, e.Type, e.Latitude, e.Longitude, e.AltitudeFt, e.SpeedKts, e.Heading, e.PhotoRef, e.RecordedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s already recorded for booking %s", domain.ErrInvalidTransition, e.Type, e.BookingID)
		}
		return fmt.Errorf("insert flight event: %w", err)
	}
	return nil
}

var _ FlightEventRepository = (*PGFlightEventRepository)(nil)
