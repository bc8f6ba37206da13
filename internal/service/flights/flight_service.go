package flights

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/geo"
	"github.com/Domenick1991/bushcharter/internal/kafka"
	"github.com/Domenick1991/bushcharter/internal/metrics"
	"github.com/Domenick1991/bushcharter/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type FlightUseCase interface {
	RecordTakeoff(ctx context.Context, bookingID, pilotID string, fix domain.Fix) (*domain.Booking, error)
	RecordLanding(ctx context.Context, input LandingInput) (*LandingResult, error)
	RecordLocationUpdate(ctx context.Context, bookingID, pilotID string, fix domain.Fix) (bool, error)
	Track(ctx context.Context, bookingID, pilotID string, fixes <-chan domain.Fix) error
	ReleasePayment(ctx context.Context, bookingID string) (*domain.Payment, error)
	ListEvents(ctx context.Context, bookingID string) ([]domain.FlightEvent, error)
}

// EvidenceStore keeps landing photos and returns a durable reference.
type EvidenceStore interface {
	Upload(ctx context.Context, bookingID string, photo io.Reader) (string, error)
}

type Releaser interface {
	Release(ctx context.Context, booking *domain.Booking) (*domain.Payment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type FlightService struct {
	bookings  repository.BookingRepository
	events    repository.FlightEventRepository
	directory repository.DirectoryRepository
	evidence  EvidenceStore
	escrow    Releaser
	producer  Producer
	topic     string

	fixMaxAge        time.Duration
	telemetryRate    rate.Limit
	telemetryBurst   int
	proximityM       float64
	enforceProximity bool
	logger           *slog.Logger
	now              func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// LandingInput carries either an already stored PhotoRef or a Photo to
// upload. One of them is required.
type LandingInput struct {
	BookingID string
	PilotID   string
	Fix       domain.Fix
	PhotoRef  string
	Photo     io.Reader
}

type LandingResult struct {
	Booking *domain.Booking `json:"-"`
	Payment *domain.Payment `json:"-"`
	// DistanceM is the distance from the landing fix to the destination
	// airport, or -1 when the airport has no coordinates on file.
	DistanceM float64 `json:"distance_m"`
	// ReleasePending is set when the payout did not complete with the landing.
	ReleasePending bool `json:"release_pending"`
}

type FlightServiceOption func(*FlightService)

func WithFixMaxAge(d time.Duration) FlightServiceOption {
	return func(s *FlightService) {
		s.fixMaxAge = d
	}
}

// WithTelemetryLimit sets how many location updates per second each booking
// may record.
func WithTelemetryLimit(perSecond float64, burst int) FlightServiceOption {
	return func(s *FlightService) {
		s.telemetryRate = rate.Limit(perSecond)
		s.telemetryBurst = burst
	}
}

func WithLandingProximity(meters float64, enforce bool) FlightServiceOption {
	return func(s *FlightService) {
		s.proximityM = meters
		s.enforceProximity = enforce
	}
}

func WithLogger(l *slog.Logger) FlightServiceOption {
	return func(s *FlightService) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) FlightServiceOption {
	return func(s *FlightService) {
		s.now = now
	}
}

func NewFlightService(
	bookings repository.BookingRepository,
	events repository.FlightEventRepository,
	directory repository.DirectoryRepository,
	evidence EvidenceStore,
	escrow Releaser,
	producer Producer,
	topic string,
	opts ...FlightServiceOption,
) *FlightService {
	service := &FlightService{
		bookings:       bookings,
		events:         events,
		directory:      directory,
		evidence:       evidence,
		escrow:         escrow,
		producer:       producer,
		topic:          topic,
		fixMaxAge:      30 * time.Second,
		telemetryRate:  rate.Limit(1),
		telemetryBurst: 5,
		proximityM:     5000,
		logger:         slog.Default(),
		now:            time.Now,
		limiters:       make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *FlightService) RecordTakeoff(ctx context.Context, bookingID, pilotID string, fix domain.Fix) (*domain.Booking, error) {
	now := s.now()
	if err := fix.Validate(now, s.fixMaxAge); err != nil {
		return nil, err
	}

	current, err := s.assigned(ctx, bookingID, pilotID)
	if err != nil {
		return nil, err
	}
	if _, err := current.Status.Next(domain.BookingEventTakeoff); err != nil {
		return nil, err
	}

	event := newEvent(bookingID, pilotID, domain.FlightEventTakeoff, fix, now)
	updated, err := s.bookings.RecordTakeoff(ctx, bookingID, current.Status, event)
	if err != nil {
		return nil, err
	}

	metrics.BookingTransitions.WithLabelValues(string(updated.Status)).Inc()
	s.logger.Info("takeoff recorded", "booking_id", bookingID, "pilot_id", pilotID,
		"lat", fix.Latitude, "lng", fix.Longitude)
	s.publish(ctx, kafka.EventFlightDeparted, updated)
	return updated, nil
}

// RecordLanding completes the flight and asks escrow to pay the pilot. The
// landing stands even when the payout cannot run yet.
func (s *FlightService) RecordLanding(ctx context.Context, input LandingInput) (*LandingResult, error) {
	input.PhotoRef = strings.TrimSpace(input.PhotoRef)
	if input.PhotoRef == "" && input.Photo == nil {
		return nil, domain.ErrMissingEvidence
	}
	now := s.now()
	if err := input.Fix.Validate(now, s.fixMaxAge); err != nil {
		return nil, err
	}

	current, err := s.assigned(ctx, input.BookingID, input.PilotID)
	if err != nil {
		return nil, err
	}
	if _, err := current.Status.Next(domain.BookingEventLand); err != nil {
		return nil, err
	}

	distance, err := s.landingDistance(ctx, current, input.Fix)
	if err != nil {
		return nil, err
	}

	photoRef := input.PhotoRef
	if photoRef == "" {
		if s.evidence == nil {
			return nil, fmt.Errorf("%w: no evidence store configured", domain.ErrMissingEvidence)
		}
		photoRef, err = s.evidence.Upload(ctx, input.BookingID, input.Photo)
		if err != nil {
			return nil, fmt.Errorf("upload landing photo: %w", err)
		}
	}

	event := newEvent(input.BookingID, input.PilotID, domain.FlightEventLanding, input.Fix, now)
	event.PhotoRef = &photoRef
	updated, err := s.bookings.RecordLanding(ctx, input.BookingID, event)
	if err != nil {
		return nil, err
	}
	s.forget(input.BookingID)

	metrics.BookingTransitions.WithLabelValues(string(updated.Status)).Inc()
	s.logger.Info("landing recorded", "booking_id", updated.ID, "pilot_id", input.PilotID,
		"distance_m", distance, "photo_ref", photoRef)
	s.publish(ctx, kafka.EventFlightLanded, updated)

	result := &LandingResult{Booking: updated, DistanceM: distance}
	payment, err := s.escrow.Release(ctx, updated)
	switch {
	case err == nil:
		result.Payment = payment
	case errors.Is(err, domain.ErrNoPayoutDestination):
		s.logger.Warn("payout held: pilot has no payout destination", "booking_id", updated.ID)
		result.ReleasePending = true
	default:
		s.logger.Warn("payout deferred to reconciliation", "booking_id", updated.ID, "error", err)
		result.ReleasePending = true
	}
	return result, nil
}

// landingDistance measures the fix against the destination airport. It only
// rejects the landing when proximity is enforced.
func (s *FlightService) landingDistance(ctx context.Context, b *domain.Booking, fix domain.Fix) (float64, error) {
	airport, err := s.directory.GetAirport(ctx, b.ToAirport)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("destination airport has no coordinates", "airport", b.ToAirport)
			return -1, nil
		}
		return 0, err
	}

	d := geo.DistanceMeters(fix.Latitude, fix.Longitude, airport.Latitude, airport.Longitude)
	metrics.LandingDistance.Observe(d)
	if d > s.proximityM {
		if s.enforceProximity {
			return d, fmt.Errorf("%w: %.0fm from %s", domain.ErrLandingTooFar, d, airport.Code)
		}
		s.logger.Warn("landing far from destination", "booking_id", b.ID, "airport", airport.Code, "distance_m", d)
	}
	return d, nil
}

// RecordLocationUpdate appends a position report for an in-flight booking.
// Reports over the booking's rate are dropped and reported as not recorded.
func (s *FlightService) RecordLocationUpdate(ctx context.Context, bookingID, pilotID string, fix domain.Fix) (bool, error) {
	now := s.now()
	if err := fix.Validate(now, s.fixMaxAge); err != nil {
		return false, err
	}

	current, err := s.assigned(ctx, bookingID, pilotID)
	if err != nil {
		return false, err
	}
	if current.Status != domain.BookingStatusInFlight {
		s.forget(bookingID)
		return false, fmt.Errorf("%w: booking %s is %s, not in flight", domain.ErrInvalidTransition, bookingID, current.Status)
	}
	if !s.limiter(bookingID).AllowN(now, 1) {
		metrics.TelemetryDropped.Inc()
		return false, nil
	}

	if err := s.events.Append(ctx, newEvent(bookingID, pilotID, domain.FlightEventLocationUpdate, fix, now)); err != nil {
		return false, err
	}
	return true, nil
}

// Track records fixes from the channel until it is closed, ctx is done or
// the booking leaves the air. Bad fixes are skipped.
func (s *FlightService) Track(ctx context.Context, bookingID, pilotID string, fixes <-chan domain.Fix) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case fix, ok := <-fixes:
			if !ok {
				return nil
			}
			_, err := s.RecordLocationUpdate(ctx, bookingID, pilotID, fix)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrPilotMismatch):
				s.logger.Info("tracking stopped", "booking_id", bookingID, "reason", err)
				return nil
			case errors.Is(err, domain.ErrLocationUnavailable):
				s.logger.Debug("fix skipped", "booking_id", bookingID, "error", err)
			default:
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("location update failed", "booking_id", bookingID, "error", err)
			}
		}
	}
}

// ReleasePayment retries the pilot payout for a completed booking.
func (s *FlightService) ReleasePayment(ctx context.Context, bookingID string) (*domain.Payment, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return s.escrow.Release(ctx, b)
}

func (s *FlightService) ListEvents(ctx context.Context, bookingID string) ([]domain.FlightEvent, error) {
	if _, err := s.bookings.GetByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.events.ListByBooking(ctx, bookingID)
}

func (s *FlightService) assigned(ctx context.Context, bookingID, pilotID string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PilotID == nil || *b.PilotID != pilotID {
		return nil, domain.ErrPilotMismatch
	}
	return b, nil
}

func (s *FlightService) limiter(bookingID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[bookingID]
	if !ok {
		l = rate.NewLimiter(s.telemetryRate, s.telemetryBurst)
		s.limiters[bookingID] = l
	}
	return l
}

func (s *FlightService) forget(bookingID string) {
	s.mu.Lock()
	delete(s.limiters, bookingID)
	s.mu.Unlock()
}

func (s *FlightService) publish(ctx context.Context, eventType string, b *domain.Booking) {
	if s.producer == nil || s.topic == "" {
		return
	}
	pilotID := ""
	if b.PilotID != nil {
		pilotID = *b.PilotID
	}
	event := kafka.BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		PilotID:    pilotID,
		Status:     string(b.Status),
		OccurredAt: s.now().UTC(),
	}
	if err := s.producer.Publish(ctx, s.topic, b.ID, event); err != nil {
		s.logger.Warn("failed to publish flight event", "type", eventType, "booking_id", b.ID, "error", err)
	}
}

func newEvent(bookingID, pilotID string, typ domain.FlightEventType, fix domain.Fix, now time.Time) *domain.FlightEvent {
	return &domain.FlightEvent{
		ID:         uuid.NewString(),
		BookingID:  bookingID,
		PilotID:    pilotID,
		Type:       typ,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		AltitudeFt: fix.AltitudeFt,
		SpeedKts:   fix.SpeedKts,
		Heading:    fix.Heading,
		RecordedAt: now,
	}
}

var _ FlightUseCase = (*FlightService)(nil)
