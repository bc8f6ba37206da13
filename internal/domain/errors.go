package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrNoPilotAvailable    = errors.New("no pilots available for this time slot")
	ErrWeatherUnverified   = errors.New("unable to verify weather conditions")
	ErrUnsafeWeather       = errors.New("flight blocked due to unsafe weather conditions")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrMissingEvidence     = errors.New("landing photo required")
	ErrPilotMismatch       = errors.New("pilot is not assigned to this booking")
	ErrNoPayoutDestination = errors.New("pilot has no payout destination")
	ErrPaymentProcessor    = errors.New("payment processor failure")
	ErrLandingTooFar       = errors.New("landing position too far from destination")
	ErrBookingLocked       = errors.New("booking is being processed")
)
