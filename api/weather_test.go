package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWeatherChecker struct {
	mock.Mock
}

func (m *MockWeatherChecker) CheckAirport(ctx context.Context, airport string) (*domain.Determination, error) {
	args := m.Called(ctx, airport)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Determination), args.Error(1)
}

func (m *MockWeatherChecker) CheckRoute(ctx context.Context, from, to string) (*domain.RouteCheck, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RouteCheck), args.Error(1)
}

func TestWeatherHandler_route(t *testing.T) {
	gate := &MockWeatherChecker{}
	handler := NewWeatherHandler(gate)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/weather/route?from=PAMR&to=PALH", nil)

	gate.On("CheckRoute", mock.Anything, "PAMR", "PALH").Return(&domain.RouteCheck{
		Departure: domain.Determination{Airport: "PAMR", IsSafe: true},
		Arrival:   domain.Determination{Airport: "PALH", IsSafe: false, BlockedReasons: []string{"Ceiling too low: 600ft (min 1000ft)"}},
		Safe:      false,
	}, nil)

	handler.route(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, false, response["safe"])
	assert.Equal(t, "PALH: Ceiling too low: 600ft (min 1000ft)", response["blocked_reason"])
}

func TestWeatherHandler_route_unverified(t *testing.T) {
	gate := &MockWeatherChecker{}
	handler := NewWeatherHandler(gate)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/weather/route?from=PAMR&to=PALH", nil)

	gate.On("CheckRoute", mock.Anything, "PAMR", "PALH").
		Return(nil, fmt.Errorf("%w: %w", domain.ErrWeatherUnverified, errors.New("timeout")))

	handler.route(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWeatherHandler_route_missingParams(t *testing.T) {
	gate := &MockWeatherChecker{}
	handler := NewWeatherHandler(gate)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/weather/route?from=PAMR", nil)

	handler.route(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	gate.AssertNotCalled(t, "CheckRoute", mock.Anything, mock.Anything, mock.Anything)
}

func TestWeatherHandler_airport(t *testing.T) {
	gate := &MockWeatherChecker{}
	handler := NewWeatherHandler(gate)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "code", Value: "PAMR"}}
	c.Request = httptest.NewRequest("GET", "/weather/airports/PAMR", nil)

	ceiling := 4500
	gate.On("CheckAirport", mock.Anything, "PAMR").Return(&domain.Determination{
		WeatherFields: domain.WeatherFields{CeilingFt: &ceiling},
		Airport:       "PAMR",
		METAR:         "PAMR 041553Z 18008KT 10SM BKN045 18/09 A2992",
		IsSafe:        true,
	}, nil)

	handler.airport(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ceiling_ft":4500`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("wrap: %w", domain.ErrInvalidTransition)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(fmt.Errorf("%w: fog", domain.ErrUnsafeWeather)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
