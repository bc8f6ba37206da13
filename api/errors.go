package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrMissingEvidence, http.StatusBadRequest},
	{domain.ErrPilotMismatch, http.StatusForbidden},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrInvalidTransition, http.StatusConflict},
	{domain.ErrNoPilotAvailable, http.StatusConflict},
	{domain.ErrNoPayoutDestination, http.StatusConflict},
	{domain.ErrBookingLocked, http.StatusConflict},
	{domain.ErrUnsafeWeather, http.StatusUnprocessableEntity},
	{domain.ErrLocationUnavailable, http.StatusUnprocessableEntity},
	{domain.ErrLandingTooFar, http.StatusUnprocessableEntity},
	{domain.ErrPaymentProcessor, http.StatusBadGateway},
	{domain.ErrWeatherUnverified, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// requireBookingID stops requests whose :id cannot be a booking ID.
func requireBookingID(c *gin.Context) {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		writeError(c, fmt.Errorf("%w: booking id %q is not a UUID", domain.ErrInvalidInput, c.Param("id")))
		c.Abort()
		return
	}
	c.Next()
}
