package domain

import (
	"fmt"
	"time"
)

type FlightEventType string

const (
	FlightEventTakeoff        FlightEventType = "takeoff"
	FlightEventLocationUpdate FlightEventType = "location_update"
	FlightEventLanding        FlightEventType = "landing"
)

// Fix is one position report from the pilot's geolocation source.
type Fix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AltitudeFt *float64  `json:"altitude_ft,omitempty"`
	SpeedKts   *float64  `json:"speed_kts,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Validate reports ErrLocationUnavailable when the fix is out of range,
// older than maxAge at now, or stamped more than maxAge ahead of now.
func (f Fix) Validate(now time.Time, maxAge time.Duration) error {
	if f.CapturedAt.IsZero() {
		return fmt.Errorf("%w: fix has no timestamp", ErrLocationUnavailable)
	}
	if f.Latitude < -90 || f.Latitude > 90 || f.Longitude < -180 || f.Longitude > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrLocationUnavailable)
	}
	age := now.Sub(f.CapturedAt)
	if age > maxAge {
		return fmt.Errorf("%w: fix is %s old", ErrLocationUnavailable, age.Round(time.Second))
	}
	if age < -maxAge {
		return fmt.Errorf("%w: fix is %s in the future", ErrLocationUnavailable, (-age).Round(time.Second))
	}
	return nil
}

type FlightEvent struct {
	ID         string
	BookingID  string
	PilotID    string
	Type       FlightEventType
	Latitude   float64
	Longitude  float64
	AltitudeFt *float64
	SpeedKts   *float64
	Heading    *float64
	PhotoRef   *string
	RecordedAt time.Time
}
