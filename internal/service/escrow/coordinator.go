package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/kafka"
	"github.com/Domenick1991/bushcharter/internal/metrics"
	"github.com/Domenick1991/bushcharter/internal/payments"
	"github.com/Domenick1991/bushcharter/internal/repository"
	"github.com/google/uuid"
)

type EscrowUseCase interface {
	PlaceHold(ctx context.Context, booking *domain.Booking, paymentMethod string) (string, error)
	ReverseHold(ctx context.Context, booking *domain.Booking, holdRef string) error
	Release(ctx context.Context, booking *domain.Booking) (*domain.Payment, error)
	Execute(ctx context.Context, op *domain.EscrowOp) (*domain.Payment, error)
	Reconcile(ctx context.Context) (int, error)
	GetPayment(ctx context.Context, bookingID string) (*domain.Payment, error)
}

type Locker interface {
	AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error)
	ReleaseBookingLock(ctx context.Context, bookingID, token string) error
}

type PayoutDirectory interface {
	PayoutDestination(ctx context.Context, pilotID string) (string, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type Coordinator struct {
	repo        repository.EscrowRepository
	processor   payments.Processor
	directory   PayoutDirectory
	locker      Locker
	producer    Producer
	logger      *slog.Logger
	topic       string
	notifyTopic string

	lockTTL     time.Duration
	opLease     time.Duration
	maxAttempts int
	batchSize   int
	retryBase   time.Duration
	retryMax    time.Duration
}

type Option func(*Coordinator)

func WithNotificationsTopic(topic string) Option {
	return func(c *Coordinator) { c.notifyTopic = topic }
}

func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) { c.maxAttempts = n }
}

func WithBatchSize(n int) Option {
	return func(c *Coordinator) { c.batchSize = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func NewCoordinator(
	repo repository.EscrowRepository,
	processor payments.Processor,
	directory PayoutDirectory,
	locker Locker,
	producer Producer,
	topic string,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		repo:        repo,
		processor:   processor,
		directory:   directory,
		locker:      locker,
		producer:    producer,
		logger:      slog.Default(),
		topic:       topic,
		lockTTL:     time.Minute,
		opLease:     2 * time.Minute,
		maxAttempts: 10,
		batchSize:   50,
		retryBase:   30 * time.Second,
		retryMax:    30 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpLease is how long a freshly written op belongs to its writer before
// reconciliation may pick it up.
func (c *Coordinator) OpLease() time.Duration {
	return c.opLease
}

// PlaceHold charges the booking's total into escrow.
func (c *Coordinator) PlaceHold(ctx context.Context, booking *domain.Booking, paymentMethod string) (string, error) {
	ref, err := c.processor.Hold(ctx, payments.HoldRequest{
		BookingID:      booking.ID,
		CustomerID:     booking.CustomerID,
		PaymentMethod:  paymentMethod,
		AmountCents:    booking.TotalPriceCents,
		IdempotencyKey: booking.ID + ":hold",
	})
	if err != nil {
		metrics.EscrowOperations.WithLabelValues("hold", "error").Inc()
		return "", err
	}
	metrics.EscrowOperations.WithLabelValues("hold", "ok").Inc()
	return ref, nil
}

// ReverseHold returns a hold whose booking could not be written.
func (c *Coordinator) ReverseHold(ctx context.Context, booking *domain.Booking, holdRef string) error {
	_, err := c.processor.Refund(ctx, holdRef, booking.TotalPriceCents, "booking not created", booking.ID+":hold:reverse")
	if err != nil {
		metrics.EscrowOperations.WithLabelValues("hold_reversal", "error").Inc()
		c.logger.Error("hold reversal failed, manual refund required",
			"booking_id", booking.ID, "hold_ref", holdRef, "amount", booking.TotalPriceCents, "error", err)
		return err
	}
	metrics.EscrowOperations.WithLabelValues("hold_reversal", "ok").Inc()
	return nil
}

// Release pays the pilot for a completed booking. It is safe to call again
// for the same booking: the existing op is resumed, and a released payment
// is returned as is.
func (c *Coordinator) Release(ctx context.Context, booking *domain.Booking) (*domain.Payment, error) {
	if booking.Status != domain.BookingStatusCompleted {
		return nil, fmt.Errorf("%w: booking %s is %s, not completed", domain.ErrInvalidTransition, booking.ID, booking.Status)
	}
	if booking.PilotID == nil {
		return nil, domain.ErrNoPayoutDestination
	}
	if _, err := c.directory.PayoutDestination(ctx, *booking.PilotID); err != nil {
		return nil, err
	}

	op := &domain.EscrowOp{
		ID:               uuid.NewString(),
		BookingID:        booking.ID,
		Kind:             domain.EscrowOpRelease,
		IdempotencyKey:   domain.IdempotencyKey(booking.ID, domain.EscrowOpRelease),
		PayoutCents:      booking.PilotPayout,
		PlatformFeeCents: booking.PlatformFee,
		Reason:           "flight completed",
	}
	started, err := c.repo.BeginRelease(ctx, op, c.opLease)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, started)
}

// Execute drives op to completion against the processor. Each processor
// step is keyed by the op's idempotency key and its reference is stored
// before the next step runs, so a retry resumes where the last run stopped.
// On failure the op stays pending and is retried by Reconcile.
func (c *Coordinator) Execute(ctx context.Context, op *domain.EscrowOp) (*domain.Payment, error) {
	switch op.Status {
	case domain.EscrowOpDone:
		return c.repo.GetPayment(ctx, op.BookingID)
	case domain.EscrowOpStuck:
		return nil, fmt.Errorf("%w: escrow op %s is stuck and needs an operator", domain.ErrInvalidTransition, op.IdempotencyKey)
	}

	token, ok, err := c.locker.AcquireBookingLock(ctx, op.BookingID, c.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire booking lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrBookingLocked
	}
	defer func() {
		if err := c.locker.ReleaseBookingLock(context.WithoutCancel(ctx), op.BookingID, token); err != nil {
			c.logger.Warn("release booking lock failed", "booking_id", op.BookingID, "error", err)
		}
	}()

	payment, err := c.repo.GetPayment(ctx, op.BookingID)
	if err != nil {
		return nil, err
	}
	if payment.Status.Terminal() {
		return payment, nil
	}

	event, err := c.runSteps(ctx, op, payment)
	if err != nil {
		return nil, c.fail(ctx, op, err)
	}

	target, err := payment.Status.Next(event)
	if err != nil {
		return nil, err
	}
	done, err := c.repo.Complete(ctx, op, target)
	if err != nil {
		return nil, c.fail(ctx, op, err)
	}

	metrics.EscrowOperations.WithLabelValues(string(op.Kind), "ok").Inc()
	c.logger.Info("escrow op completed", "booking_id", op.BookingID, "kind", op.Kind, "payment_status", done.Status)
	c.publishPayment(ctx, done, op)
	return done, nil
}

func (c *Coordinator) runSteps(ctx context.Context, op *domain.EscrowOp, payment *domain.Payment) (domain.PaymentEvent, error) {
	switch op.Kind {
	case domain.EscrowOpRelease:
		if op.TransferRef == nil {
			dest, err := c.destination(ctx, payment)
			if err != nil {
				return "", err
			}
			ref, err := c.processor.Transfer(ctx, payment.HoldRef, dest, op.PayoutCents, op.IdempotencyKey+":payout")
			if err != nil {
				return "", err
			}
			op.TransferRef = &ref
			if err := c.repo.SaveProgress(ctx, op); err != nil {
				return "", err
			}
		}
		return domain.PaymentEventReleased, nil

	case domain.EscrowOpSettlement:
		if op.RefundCents > 0 && op.RefundRef == nil {
			ref, err := c.processor.Refund(ctx, payment.HoldRef, op.RefundCents, op.Reason, op.IdempotencyKey+":refund")
			if err != nil {
				return "", err
			}
			op.RefundRef = &ref
			if err := c.repo.SaveProgress(ctx, op); err != nil {
				return "", err
			}
		}
		if op.PilotFeeCents > 0 && op.TransferRef == nil {
			dest, err := c.destination(ctx, payment)
			if err != nil {
				return "", err
			}
			ref, err := c.processor.Transfer(ctx, payment.HoldRef, dest, op.PilotFeeCents, op.IdempotencyKey+":fee")
			if err != nil {
				return "", err
			}
			op.TransferRef = &ref
			if err := c.repo.SaveProgress(ctx, op); err != nil {
				return "", err
			}
		}
		if op.RefundCents > 0 {
			return domain.PaymentEventRefunded, nil
		}
		return domain.PaymentEventVoided, nil
	}
	return "", fmt.Errorf("unknown escrow op kind %q", op.Kind)
}

func (c *Coordinator) destination(ctx context.Context, payment *domain.Payment) (string, error) {
	if payment.PilotID == nil {
		return "", domain.ErrNoPayoutDestination
	}
	return c.directory.PayoutDestination(ctx, *payment.PilotID)
}

// fail records the attempt on the op and reports it. The returned error
// wraps cause.
func (c *Coordinator) fail(ctx context.Context, op *domain.EscrowOp, cause error) error {
	metrics.EscrowOperations.WithLabelValues(string(op.Kind), "error").Inc()

	updated, err := c.repo.MarkFailed(context.WithoutCancel(ctx), op.ID, cause.Error(), c.maxAttempts, c.retryAfter(op.Attempts))
	if err != nil {
		c.logger.Error("record escrow failure", "booking_id", op.BookingID, "op", op.IdempotencyKey, "error", err)
		return fmt.Errorf("escrow %s for booking %s: %w", op.Kind, op.BookingID, cause)
	}

	eventType := kafka.EventSettlementFailed
	if updated.Status == domain.EscrowOpStuck {
		eventType = kafka.EventSettlementStuck
	}
	c.logger.Error("escrow op failed",
		"booking_id", op.BookingID, "op", op.IdempotencyKey, "attempts", updated.Attempts, "status", updated.Status, "error", cause)
	c.publish(ctx, kafka.BookingEvent{
		Type:      eventType,
		BookingID: op.BookingID,
		Reason:    cause.Error(),
	}, false)

	return fmt.Errorf("escrow %s for booking %s: %w", op.Kind, op.BookingID, cause)
}

func (c *Coordinator) retryAfter(attempts int) time.Duration {
	d := c.retryBase << min(attempts, 10)
	return min(d, c.retryMax)
}

// Reconcile retries due pending ops. It returns how many completed.
func (c *Coordinator) Reconcile(ctx context.Context) (int, error) {
	ops, err := c.repo.ClaimPending(ctx, c.batchSize, c.opLease)
	if err != nil {
		return 0, err
	}

	completed := 0
	for i := range ops {
		if _, err := c.Execute(ctx, &ops[i]); err != nil {
			if errors.Is(err, domain.ErrBookingLocked) {
				continue
			}
			c.logger.Warn("reconcile escrow op", "op", ops[i].IdempotencyKey, "error", err)
			continue
		}
		completed++
	}
	return completed, nil
}

func (c *Coordinator) GetPayment(ctx context.Context, bookingID string) (*domain.Payment, error) {
	return c.repo.GetPayment(ctx, bookingID)
}

func (c *Coordinator) publishPayment(ctx context.Context, p *domain.Payment, op *domain.EscrowOp) {
	event := kafka.BookingEvent{
		BookingID:     p.BookingID,
		CustomerID:    p.CustomerID,
		PaymentStatus: string(p.Status),
		Reason:        op.Reason,
	}
	if p.PilotID != nil {
		event.PilotID = *p.PilotID
	}

	switch p.Status {
	case domain.PaymentStatusReleased:
		event.Type = kafka.EventPaymentReleased
		event.AmountCents = op.PayoutCents
	case domain.PaymentStatusRefunded:
		event.Type = kafka.EventPaymentRefunded
		event.AmountCents = op.RefundCents
	default:
		return
	}
	c.publish(ctx, event, true)
}

func (c *Coordinator) publish(ctx context.Context, event kafka.BookingEvent, notify bool) {
	if c.producer == nil || c.topic == "" {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := c.producer.Publish(ctx, c.topic, event.BookingID, event); err != nil {
		c.logger.Warn("publish escrow event", "type", event.Type, "booking_id", event.BookingID, "error", err)
		return
	}
	if notify && c.notifyTopic != "" {
		if err := c.producer.Publish(ctx, c.notifyTopic, event.BookingID, event); err != nil {
			c.logger.Warn("publish notification", "type", event.Type, "booking_id", event.BookingID, "error", err)
		}
	}
}

var _ EscrowUseCase = (*Coordinator)(nil)
