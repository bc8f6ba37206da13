package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending          BookingStatus = "pending"
	BookingStatusConfirmed        BookingStatus = "confirmed"
	BookingStatusInFlight         BookingStatus = "in_flight"
	BookingStatusCompleted        BookingStatus = "completed"
	BookingStatusCancelled        BookingStatus = "cancelled"
	BookingStatusWeatherCancelled BookingStatus = "weather_cancelled"
)

// BookingEvent is an input to the booking state machine.
type BookingEvent string

const (
	BookingEventConfirm       BookingEvent = "confirm"
	BookingEventTakeoff       BookingEvent = "takeoff"
	BookingEventLand          BookingEvent = "land"
	BookingEventCancel        BookingEvent = "cancel"
	BookingEventWeatherCancel BookingEvent = "weather_cancel"
)

// Next returns the status reached by applying ev, or ErrInvalidTransition.
func (s BookingStatus) Next(ev BookingEvent) (BookingStatus, error) {
	switch s {
	case BookingStatusPending:
		switch ev {
		case BookingEventConfirm:
			return BookingStatusConfirmed, nil
		case BookingEventTakeoff:
			return BookingStatusInFlight, nil
		case BookingEventCancel:
			return BookingStatusCancelled, nil
		case BookingEventWeatherCancel:
			return BookingStatusWeatherCancelled, nil
		}
	case BookingStatusConfirmed:
		switch ev {
		case BookingEventTakeoff:
			return BookingStatusInFlight, nil
		case BookingEventCancel:
			return BookingStatusCancelled, nil
		case BookingEventWeatherCancel:
			return BookingStatusWeatherCancelled, nil
		}
	case BookingStatusInFlight:
		if ev == BookingEventLand {
			return BookingStatusCompleted, nil
		}
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusWeatherCancelled:
	default:
		return s, fmt.Errorf("%w: unknown booking status %q", ErrInvalidTransition, s)
	}
	return s, fmt.Errorf("%w: booking %s cannot %s", ErrInvalidTransition, s, ev)
}

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled || s == BookingStatusWeatherCancelled
}

type Booking struct {
	ID              string
	CustomerID      string
	PilotID         *string
	SlotID          *string
	FromAirport     string
	ToAirport       string
	ScheduledAt     time.Time
	Passengers      int
	TotalPriceCents int64
	PlatformFee     int64
	PilotPayout     int64
	Status          BookingStatus

	TakeoffAt    *time.Time
	TakeoffLat   *float64
	TakeoffLng   *float64
	LandingAt    *time.Time
	LandingLat   *float64
	LandingLng   *float64
	LandingPhoto *string

	CancellationCause  *string
	CancellationReason *string
	CancelledAt        *time.Time
	CancelledBy        *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlatformFeePercent is the platform's share of every booking.
const PlatformFeePercent = 5

// SplitPrice returns the platform fee and pilot payout for total. The payout
// takes the rounding remainder so that fee+payout == total.
func SplitPrice(total int64) (platformFee, pilotPayout int64) {
	platformFee = total * PlatformFeePercent / 100
	return platformFee, total - platformFee
}

// HoursUntil reports the hours between now and the scheduled departure.
func (b *Booking) HoursUntil(now time.Time) float64 {
	return b.ScheduledAt.Sub(now).Hours()
}
