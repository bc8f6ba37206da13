package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatus_Next(t *testing.T) {
	testCases := []struct {
		name     string
		from     BookingStatus
		event    BookingEvent
		expected BookingStatus
		wantErr  bool
	}{
		{"pending confirm", BookingStatusPending, BookingEventConfirm, BookingStatusConfirmed, false},
		{"pending takeoff", BookingStatusPending, BookingEventTakeoff, BookingStatusInFlight, false},
		{"confirmed takeoff", BookingStatusConfirmed, BookingEventTakeoff, BookingStatusInFlight, false},
		{"in flight land", BookingStatusInFlight, BookingEventLand, BookingStatusCompleted, false},
		{"pending cancel", BookingStatusPending, BookingEventCancel, BookingStatusCancelled, false},
		{"confirmed weather cancel", BookingStatusConfirmed, BookingEventWeatherCancel, BookingStatusWeatherCancelled, false},
		{"pending land", BookingStatusPending, BookingEventLand, BookingStatusPending, true},
		{"confirmed confirm", BookingStatusConfirmed, BookingEventConfirm, BookingStatusConfirmed, true},
		{"in flight takeoff twice", BookingStatusInFlight, BookingEventTakeoff, BookingStatusInFlight, true},
		{"in flight cancel", BookingStatusInFlight, BookingEventCancel, BookingStatusInFlight, true},
		{"completed cancel", BookingStatusCompleted, BookingEventCancel, BookingStatusCompleted, true},
		{"cancelled cancel", BookingStatusCancelled, BookingEventCancel, BookingStatusCancelled, true},
		{"weather cancelled takeoff", BookingStatusWeatherCancelled, BookingEventTakeoff, BookingStatusWeatherCancelled, true},
		{"unknown status", BookingStatus("boarding"), BookingEventTakeoff, BookingStatus("boarding"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := tc.from.Next(tc.event)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.expected, next)
		})
	}
}

func TestBookingStatus_TerminalStatesRejectEverything(t *testing.T) {
	events := []BookingEvent{BookingEventConfirm, BookingEventTakeoff, BookingEventLand, BookingEventCancel, BookingEventWeatherCancel}
	for _, s := range []BookingStatus{BookingStatusCompleted, BookingStatusCancelled, BookingStatusWeatherCancelled} {
		assert.True(t, s.Terminal())
		for _, ev := range events {
			_, err := s.Next(ev)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", s, ev)
		}
	}
}

func TestSplitPrice(t *testing.T) {
	for _, total := range []int64{0, 1, 99, 35000, 70000, 123457} {
		fee, payout := SplitPrice(total)
		assert.Equal(t, total, fee+payout)
	}

	fee, payout := SplitPrice(70000)
	assert.Equal(t, int64(3500), fee)
	assert.Equal(t, int64(66500), payout)
}

func TestBooking_HoursUntil(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	b := &Booking{ScheduledAt: now.Add(30 * time.Hour)}
	assert.InDelta(t, 30.0, b.HoursUntil(now), 1e-9)
}

func TestFix_Validate(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := Fix{Latitude: 61.17, Longitude: -150.0, CapturedAt: now.Add(-5 * time.Second)}
	assert.NoError(t, fresh.Validate(now, 30*time.Second))

	stale := fresh
	stale.CapturedAt = now.Add(-2 * time.Minute)
	assert.ErrorIs(t, stale.Validate(now, 30*time.Second), ErrLocationUnavailable)

	skewed := fresh
	skewed.CapturedAt = now.Add(10 * time.Second)
	assert.NoError(t, skewed.Validate(now, 30*time.Second))

	future := fresh
	future.CapturedAt = now.Add(365 * 24 * time.Hour)
	assert.ErrorIs(t, future.Validate(now, 30*time.Second), ErrLocationUnavailable)

	missing := Fix{Latitude: 61.17, Longitude: -150.0}
	assert.ErrorIs(t, missing.Validate(now, 30*time.Second), ErrLocationUnavailable)

	outOfRange := fresh
	outOfRange.Latitude = 123
	assert.ErrorIs(t, outOfRange.Validate(now, 30*time.Second), ErrLocationUnavailable)
}
