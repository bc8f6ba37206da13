package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bushcharter_weather_fetches_total",
		Help: "Weather report fetches by source and result",
	}, []string{"source", "result"})

	RouteChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bushcharter_route_checks_total",
		Help: "Route weather checks by outcome (safe, unsafe, unverified)",
	}, []string{"outcome"})

	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bushcharter_booking_transitions_total",
		Help: "Booking state machine transitions by target status",
	}, []string{"status"})

	EscrowOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bushcharter_escrow_operations_total",
		Help: "Escrow saga executions by kind and result",
	}, []string{"kind", "result"})

	TelemetryDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bushcharter_telemetry_dropped_total",
		Help: "Location updates dropped by the per-booking throttle",
	})

	LandingDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bushcharter_landing_distance_meters",
		Help:    "Distance between the recorded landing fix and the destination airport",
		Buckets: []float64{100, 500, 1000, 2500, 5000, 10000, 50000},
	})
)
