package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/kafka"
	"github.com/Domenick1991/bushcharter/internal/metrics"
	"github.com/Domenick1991/bushcharter/internal/policy"
	"github.com/Domenick1991/bushcharter/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ConfirmBooking(ctx context.Context, id, pilotID string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, input CancelBookingInput) (*CancellationResult, error)
	CancellationQuote(ctx context.Context, id, cause string) (*Quote, error)
	WeatherSweep(ctx context.Context, lookahead time.Duration) (int, error)
}

type RouteGate interface {
	CheckRoute(ctx context.Context, from, to string) (*domain.RouteCheck, error)
}

type Escrow interface {
	PlaceHold(ctx context.Context, booking *domain.Booking, paymentMethod string) (string, error)
	ReverseHold(ctx context.Context, booking *domain.Booking, holdRef string) error
	Execute(ctx context.Context, op *domain.EscrowOp) (*domain.Payment, error)
	GetPayment(ctx context.Context, bookingID string) (*domain.Payment, error)
	OpLease() time.Duration
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	gate               RouteGate
	escrow             Escrow
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	basePriceCents     int64
	creditValidity     time.Duration
	sweepBatch         int
	validate           *validator.Validate
	logger             *slog.Logger
	now                func() time.Time
}

type CreateBookingInput struct {
	CustomerID    string    `json:"customer_id" validate:"required"`
	FromAirport   string    `json:"from_airport" validate:"required,min=3,max=4,alphanum"`
	ToAirport     string    `json:"to_airport" validate:"required,min=3,max=4,alphanum,nefield=FromAirport"`
	ScheduledAt   time.Time `json:"scheduled_at" validate:"required"`
	Passengers    int       `json:"passengers" validate:"required,min=1,max=12"`
	PaymentMethod string    `json:"payment_method" validate:"required"`
}

type CancelBookingInput struct {
	BookingID   string `json:"-" validate:"required"`
	Cause       string `json:"cause" validate:"required"`
	Reason      string `json:"reason" validate:"max=500"`
	CancelledBy string `json:"cancelled_by" validate:"required"`
}

type CancellationResult struct {
	Booking    *domain.Booking        `json:"-"`
	Payment    *domain.Payment        `json:"-"`
	Decision   policy.Decision        `json:"decision"`
	Settlement policy.Settlement      `json:"settlement"`
	Credit     *domain.CustomerCredit `json:"-"`
	// SettlementPending is set when the money movement did not finish and
	// was left to reconciliation.
	SettlementPending bool `json:"settlement_pending"`
}

type Quote struct {
	BookingID  string            `json:"booking_id"`
	Decision   policy.Decision   `json:"decision"`
	Settlement policy.Settlement `json:"settlement"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithCreditValidity(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.creditValidity = d
	}
}

func WithSweepBatch(n int) BookingServiceOption {
	return func(s *BookingService) {
		s.sweepBatch = n
	}
}

func WithLogger(l *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	gate RouteGate,
	escrow Escrow,
	producer Producer,
	bookingTopic string,
	basePriceCents int64,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:       bookings,
		gate:           gate,
		escrow:         escrow,
		producer:       producer,
		bookingTopic:   bookingTopic,
		basePriceCents: basePriceCents,
		creditValidity: 365 * 24 * time.Hour,
		sweepBatch:     100,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking re-checks route weather, places the escrow hold, then claims
// a pilot slot and writes the booking and payment in one transaction. If the
// transaction fails the hold is reversed.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	input.FromAirport = strings.ToUpper(strings.TrimSpace(input.FromAirport))
	input.ToAirport = strings.ToUpper(strings.TrimSpace(input.ToAirport))
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if !input.ScheduledAt.After(s.now()) {
		return nil, fmt.Errorf("%w: scheduled time must be in the future", domain.ErrInvalidInput)
	}

	check, err := s.gate.CheckRoute(ctx, input.FromAirport, input.ToAirport)
	if err != nil {
		return nil, err
	}
	if !check.Safe {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsafeWeather, check.BlockedReason())
	}

	total := s.basePriceCents * int64(input.Passengers)
	fee, payout := domain.SplitPrice(total)
	booking := &domain.Booking{
		ID:              uuid.NewString(),
		CustomerID:      input.CustomerID,
		FromAirport:     input.FromAirport,
		ToAirport:       input.ToAirport,
		ScheduledAt:     input.ScheduledAt,
		Passengers:      input.Passengers,
		TotalPriceCents: total,
		PlatformFee:     fee,
		PilotPayout:     payout,
	}

	holdRef, err := s.escrow.PlaceHold(ctx, booking, input.PaymentMethod)
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:          uuid.NewString(),
		BookingID:   booking.ID,
		CustomerID:  booking.CustomerID,
		Amount:      total,
		PlatformFee: fee,
		PilotPayout: payout,
		HoldRef:     holdRef,
	}
	if err := s.bookings.CreateWithClaim(ctx, booking, payment); err != nil {
		_ = s.escrow.ReverseHold(context.WithoutCancel(ctx), booking, holdRef)
		return nil, err
	}

	metrics.BookingTransitions.WithLabelValues(string(booking.Status)).Inc()
	s.logger.Info("booking created", "booking_id", booking.ID, "pilot_id", deref(booking.PilotID), "total_cents", total)
	s.publish(ctx, kafka.EventBookingCreated, booking, total, "")
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// ConfirmBooking is the assigned pilot accepting a pending booking.
func (s *BookingService) ConfirmBooking(ctx context.Context, id, pilotID string) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.PilotID == nil || *current.PilotID != pilotID {
		return nil, domain.ErrPilotMismatch
	}
	next, err := current.Status.Next(domain.BookingEventConfirm)
	if err != nil {
		return nil, err
	}

	updated, err := s.bookings.Transition(ctx, id, current.Status, next)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(updated.Status)).Inc()
	s.publish(ctx, kafka.EventBookingConfirmed, updated, 0, "")
	return updated, nil
}

// CancelBooking records the cancellation, the payment's refund_pending
// sub-status, the settlement op and any credit in one transaction, then
// settles with the processor. A settlement failure does not undo the
// cancellation; the op stays pending for reconciliation.
func (s *BookingService) CancelBooking(ctx context.Context, input CancelBookingInput) (*CancellationResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	cause, err := policy.ParseCause(input.Cause)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	current, err := s.bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	event := domain.BookingEventCancel
	if cause == policy.CauseWeather {
		event = domain.BookingEventWeatherCancel
	}
	next, err := current.Status.Next(event)
	if err != nil {
		return nil, err
	}

	now := s.now()
	decision := policy.Decide(cause, current.HoursUntil(now))
	settlement := decision.Settle(current.TotalPriceCents)

	reason := input.Reason
	if reason == "" {
		reason = string(cause)
	}
	op := &domain.EscrowOp{
		ID:               uuid.NewString(),
		BookingID:        current.ID,
		Kind:             domain.EscrowOpSettlement,
		IdempotencyKey:   domain.IdempotencyKey(current.ID, domain.EscrowOpSettlement),
		RefundCents:      settlement.RefundCents,
		PilotFeeCents:    settlement.PilotFeeCents,
		PlatformFeeCents: settlement.PlatformFeeCents,
		Reason:           reason,
	}

	var credit *domain.CustomerCredit
	if settlement.CreditCents > 0 {
		credit = &domain.CustomerCredit{
			ID:          uuid.NewString(),
			CustomerID:  current.CustomerID,
			AmountCents: settlement.CreditCents,
			Reason:      decision.CreditReason,
			BookingID:   current.ID,
			ExpiresAt:   now.Add(s.creditValidity),
			CreatedAt:   now,
		}
	}

	updated, err := s.bookings.Cancel(ctx, repository.CancelCommand{
		BookingID:   current.ID,
		From:        current.Status,
		To:          next,
		Cause:       string(cause),
		Reason:      reason,
		CancelledBy: input.CancelledBy,
		CancelledAt: now,
		Op:          op,
		Credit:      credit,
		OpLease:     s.escrow.OpLease(),
	})
	if err != nil {
		return nil, err
	}

	metrics.BookingTransitions.WithLabelValues(string(updated.Status)).Inc()
	s.logger.Info("booking cancelled",
		"booking_id", updated.ID, "cause", cause, "refund_cents", settlement.RefundCents,
		"pilot_fee_cents", settlement.PilotFeeCents, "credit_cents", settlement.CreditCents)

	eventType := kafka.EventBookingCancelled
	if updated.Status == domain.BookingStatusWeatherCancelled {
		eventType = kafka.EventWeatherCancelled
	}
	s.publish(ctx, eventType, updated, settlement.RefundCents, reason)
	if credit != nil {
		s.publish(ctx, kafka.EventCreditIssued, updated, credit.AmountCents, credit.Reason)
	}

	result := &CancellationResult{
		Booking:    updated,
		Decision:   decision,
		Settlement: settlement,
		Credit:     credit,
	}

	payment, err := s.escrow.Execute(ctx, op)
	if err != nil {
		s.logger.Warn("settlement deferred to reconciliation", "booking_id", updated.ID, "error", err)
		result.SettlementPending = true
		payment, err = s.escrow.GetPayment(ctx, updated.ID)
		if err != nil {
			s.logger.Warn("load payment after deferred settlement", "booking_id", updated.ID, "error", err)
		}
	}
	result.Payment = payment
	return result, nil
}

// CancellationQuote reports what cancelling now would refund, charge and
// credit, without changing anything.
func (s *BookingService) CancellationQuote(ctx context.Context, id, causeName string) (*Quote, error) {
	cause, err := policy.ParseCause(causeName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := b.Status.Next(domain.BookingEventCancel); err != nil {
		return nil, err
	}

	decision := policy.Decide(cause, b.HoursUntil(s.now()))
	return &Quote{
		BookingID:  b.ID,
		Decision:   decision,
		Settlement: decision.Settle(b.TotalPriceCents),
	}, nil
}

// WeatherSweep re-checks route weather for bookings departing within
// lookahead and weather-cancels the ones whose route is now unsafe. A route
// that cannot be verified is left alone and logged.
func (s *BookingService) WeatherSweep(ctx context.Context, lookahead time.Duration) (int, error) {
	now := s.now()
	upcoming, err := s.bookings.ListDeparting(ctx, now, now.Add(lookahead), s.sweepBatch)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, b := range upcoming {
		check, err := s.gate.CheckRoute(ctx, b.FromAirport, b.ToAirport)
		if err != nil {
			s.logger.Warn("weather sweep could not verify route", "booking_id", b.ID, "error", err)
			continue
		}
		if check.Safe {
			continue
		}

		_, err = s.CancelBooking(ctx, CancelBookingInput{
			BookingID:   b.ID,
			Cause:       string(policy.CauseWeather),
			Reason:      check.BlockedReason(),
			CancelledBy: "system:weather-sweep",
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			s.logger.Error("weather cancel failed", "booking_id", b.ID, "error", err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, b *domain.Booking, amount int64, reason string) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:        eventType,
		BookingID:   b.ID,
		CustomerID:  b.CustomerID,
		PilotID:     deref(b.PilotID),
		Status:      string(b.Status),
		AmountCents: amount,
		Reason:      reason,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, b.ID, event); err != nil {
		s.logger.Warn("failed to publish booking event", "type", eventType, "booking_id", b.ID, "error", err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, b.ID, event); err != nil {
			s.logger.Warn("failed to publish notification", "type", eventType, "booking_id", b.ID, "error", err)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ BookingUseCase = (*BookingService)(nil)
