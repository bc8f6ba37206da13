package escrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/kafka"
	"github.com/Domenick1991/bushcharter/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEscrowRepository struct {
	mock.Mock
}

func (m *MockEscrowRepository) GetPayment(ctx context.Context, bookingID string) (*domain.Payment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockEscrowRepository) GetOp(ctx context.Context, key string) (*domain.EscrowOp, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EscrowOp), args.Error(1)
}

func (m *MockEscrowRepository) BeginRelease(ctx context.Context, op *domain.EscrowOp, lease time.Duration) (*domain.EscrowOp, error) {
	args := m.Called(ctx, op, lease)
	if rf, ok := args.Get(0).(func(*domain.EscrowOp) *domain.EscrowOp); ok {
		return rf(op), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EscrowOp), args.Error(1)
}

func (m *MockEscrowRepository) SaveProgress(ctx context.Context, op *domain.EscrowOp) error {
	return m.Called(ctx, op).Error(0)
}

func (m *MockEscrowRepository) Complete(ctx context.Context, op *domain.EscrowOp, to domain.PaymentStatus) (*domain.Payment, error) {
	args := m.Called(ctx, op, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockEscrowRepository) MarkFailed(ctx context.Context, opID, cause string, maxAttempts int, retryAfter time.Duration) (*domain.EscrowOp, error) {
	args := m.Called(ctx, opID, cause, maxAttempts, retryAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EscrowOp), args.Error(1)
}

func (m *MockEscrowRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]domain.EscrowOp, error) {
	args := m.Called(ctx, limit, lease)
	return args.Get(0).([]domain.EscrowOp), args.Error(1)
}

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Hold(ctx context.Context, req payments.HoldRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockProcessor) Transfer(ctx context.Context, holdRef, destination string, amount int64, key string) (string, error) {
	args := m.Called(ctx, holdRef, destination, amount, key)
	return args.String(0), args.Error(1)
}

func (m *MockProcessor) Refund(ctx context.Context, holdRef string, amount int64, reason, key string) (string, error) {
	args := m.Called(ctx, holdRef, amount, reason, key)
	return args.String(0), args.Error(1)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) PayoutDestination(ctx context.Context, pilotID string) (string, error) {
	args := m.Called(ctx, pilotID)
	return args.String(0), args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, bookingID, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLocker) ReleaseBookingLock(ctx context.Context, bookingID, token string) error {
	return m.Called(ctx, bookingID, token).Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value any) error {
	return m.Called(ctx, topic, key, value).Error(0)
}

type fixture struct {
	repo      *MockEscrowRepository
	processor *MockProcessor
	directory *MockDirectory
	locker    *MockLocker
	producer  *MockProducer
	svc       *Coordinator
}

func newFixture() *fixture {
	f := &fixture{
		repo:      &MockEscrowRepository{},
		processor: &MockProcessor{},
		directory: &MockDirectory{},
		locker:    &MockLocker{},
		producer:  &MockProducer{},
	}
	f.svc = NewCoordinator(f.repo, f.processor, f.directory, f.locker, f.producer, "bookings",
		WithNotificationsTopic("notifications"), WithMaxAttempts(3))
	return f
}

func (f *fixture) expectLock(bookingID string) {
	f.locker.On("AcquireBookingLock", mock.Anything, bookingID, time.Minute).Return("tok", true, nil)
	f.locker.On("ReleaseBookingLock", mock.Anything, bookingID, "tok").Return(nil)
}

func strPtr(s string) *string { return &s }

func TestCoordinator_Release_Success(t *testing.T) {
	f := newFixture()
	booking := &domain.Booking{
		ID: "b-1", CustomerID: "c-1", PilotID: strPtr("p-1"), Status: domain.BookingStatusCompleted,
		TotalPriceCents: 70000, PlatformFee: 3500, PilotPayout: 66500,
	}
	payment := &domain.Payment{BookingID: "b-1", CustomerID: "c-1", PilotID: strPtr("p-1"), HoldRef: "pi_1", Status: domain.PaymentStatusReleasePending}
	released := &domain.Payment{BookingID: "b-1", CustomerID: "c-1", PilotID: strPtr("p-1"), HoldRef: "pi_1", Status: domain.PaymentStatusReleased}

	f.directory.On("PayoutDestination", mock.Anything, "p-1").Return("acct_1", nil)
	f.repo.On("BeginRelease", mock.Anything, mock.MatchedBy(func(op *domain.EscrowOp) bool {
		return op.Kind == domain.EscrowOpRelease && op.IdempotencyKey == "b-1:release" && op.PayoutCents == 66500
	}), 2*time.Minute).Return(func(op *domain.EscrowOp) *domain.EscrowOp {
		op.Status = domain.EscrowOpPending
		return op
	}, nil)
	f.expectLock("b-1")
	f.repo.On("GetPayment", mock.Anything, "b-1").Return(payment, nil)
	f.processor.On("Transfer", mock.Anything, "pi_1", "acct_1", int64(66500), "b-1:release:payout").Return("tr_1", nil)
	f.repo.On("SaveProgress", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("Complete", mock.Anything, mock.Anything, domain.PaymentStatusReleased).Return(released, nil)
	f.producer.On("Publish", mock.Anything, "bookings", "b-1", mock.Anything).Return(nil)
	f.producer.On("Publish", mock.Anything, "notifications", "b-1", mock.Anything).Return(nil)

	got, err := f.svc.Release(context.Background(), booking)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusReleased, got.Status)
	f.processor.AssertNumberOfCalls(t, "Transfer", 1)
	f.producer.AssertCalled(t, "Publish", mock.Anything, "notifications", "b-1", mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventPaymentReleased && e.AmountCents == 66500 && e.PilotID == "p-1"
	}))
}

func TestCoordinator_Release_RequiresCompletedBooking(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Release(context.Background(), &domain.Booking{ID: "b-1", Status: domain.BookingStatusInFlight})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCoordinator_Release_NoPayoutDestination(t *testing.T) {
	f := newFixture()
	f.directory.On("PayoutDestination", mock.Anything, "p-1").Return("", domain.ErrNoPayoutDestination)

	_, err := f.svc.Release(context.Background(), &domain.Booking{ID: "b-1", PilotID: strPtr("p-1"), Status: domain.BookingStatusCompleted})

	assert.ErrorIs(t, err, domain.ErrNoPayoutDestination)
	f.repo.AssertNotCalled(t, "BeginRelease", mock.Anything, mock.Anything, mock.Anything)
}

func settlementOp(refund, pilotFee, platformFee int64) *domain.EscrowOp {
	return &domain.EscrowOp{
		ID: "op-1", BookingID: "b-2", Kind: domain.EscrowOpSettlement, IdempotencyKey: "b-2:settlement",
		Status: domain.EscrowOpPending, RefundCents: refund, PilotFeeCents: pilotFee, PlatformFeeCents: platformFee,
		Reason: "customer cancelled",
	}
}

func refundPending() *domain.Payment {
	return &domain.Payment{BookingID: "b-2", CustomerID: "c-2", PilotID: strPtr("p-2"), HoldRef: "pi_2", Status: domain.PaymentStatusRefundPending}
}

func TestCoordinator_Execute_SplitSettlement(t *testing.T) {
	f := newFixture()
	op := settlementOp(35001, 35000, 0)

	f.expectLock("b-2")
	f.repo.On("GetPayment", mock.Anything, "b-2").Return(refundPending(), nil)
	f.processor.On("Refund", mock.Anything, "pi_2", int64(35001), "customer cancelled", "b-2:settlement:refund").Return("re_1", nil)
	f.directory.On("PayoutDestination", mock.Anything, "p-2").Return("acct_2", nil)
	f.processor.On("Transfer", mock.Anything, "pi_2", "acct_2", int64(35000), "b-2:settlement:fee").Return("tr_2", nil)
	f.repo.On("SaveProgress", mock.Anything, op).Return(nil)
	f.repo.On("Complete", mock.Anything, op, domain.PaymentStatusRefunded).
		Return(&domain.Payment{BookingID: "b-2", CustomerID: "c-2", Status: domain.PaymentStatusRefunded}, nil)
	f.producer.On("Publish", mock.Anything, mock.Anything, "b-2", mock.Anything).Return(nil)

	got, err := f.svc.Execute(context.Background(), op)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, got.Status)
	assert.Equal(t, "re_1", *op.RefundRef)
	assert.Equal(t, "tr_2", *op.TransferRef)
	f.repo.AssertNumberOfCalls(t, "SaveProgress", 2)
}

func TestCoordinator_Execute_WeatherSettlementVoids(t *testing.T) {
	f := newFixture()
	op := settlementOp(0, 0, 0)

	f.expectLock("b-2")
	f.repo.On("GetPayment", mock.Anything, "b-2").Return(refundPending(), nil)
	f.repo.On("Complete", mock.Anything, op, domain.PaymentStatusCancelled).
		Return(&domain.Payment{BookingID: "b-2", Status: domain.PaymentStatusCancelled}, nil)

	got, err := f.svc.Execute(context.Background(), op)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, got.Status)
	f.processor.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.processor.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Execute_ProcessorFailureLeavesOpPending(t *testing.T) {
	f := newFixture()
	op := settlementOp(70000, 0, 0)

	f.expectLock("b-2")
	f.repo.On("GetPayment", mock.Anything, "b-2").Return(refundPending(), nil)
	f.processor.On("Refund", mock.Anything, "pi_2", int64(70000), mock.Anything, "b-2:settlement:refund").
		Return("", domain.ErrPaymentProcessor)
	f.repo.On("MarkFailed", mock.Anything, "op-1", mock.Anything, 3, 30*time.Second).
		Return(&domain.EscrowOp{ID: "op-1", Status: domain.EscrowOpPending, Attempts: 1}, nil)
	f.producer.On("Publish", mock.Anything, "bookings", "b-2", mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventSettlementFailed
	})).Return(nil)

	_, err := f.svc.Execute(context.Background(), op)

	assert.ErrorIs(t, err, domain.ErrPaymentProcessor)
	f.repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	f.producer.AssertExpectations(t)
}

func TestCoordinator_Execute_ReportsStuckOps(t *testing.T) {
	f := newFixture()
	op := settlementOp(70000, 0, 0)
	op.Attempts = 2

	f.expectLock("b-2")
	f.repo.On("GetPayment", mock.Anything, "b-2").Return(refundPending(), nil)
	f.processor.On("Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("card_declined"))
	f.repo.On("MarkFailed", mock.Anything, "op-1", "card_declined", 3, 2*time.Minute).
		Return(&domain.EscrowOp{ID: "op-1", Status: domain.EscrowOpStuck, Attempts: 3}, nil)
	f.producer.On("Publish", mock.Anything, "bookings", "b-2", mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventSettlementStuck
	})).Return(nil)

	_, err := f.svc.Execute(context.Background(), op)

	assert.Error(t, err)
	f.repo.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func TestCoordinator_Execute_ResumesAfterRefund(t *testing.T) {
	f := newFixture()
	op := settlementOp(35001, 35000, 0)
	op.RefundRef = strPtr("re_1")

	f.expectLock("b-2")
	f.repo.On("GetPayment", mock.Anything, "b-2").Return(refundPending(), nil)
	f.directory.On("PayoutDestination", mock.Anything, "p-2").Return("acct_2", nil)
	f.processor.On("Transfer", mock.Anything, "pi_2", "acct_2", int64(35000), "b-2:settlement:fee").Return("tr_2", nil)
	f.repo.On("SaveProgress", mock.Anything, op).Return(nil)
	f.repo.On("Complete", mock.Anything, op, domain.PaymentStatusRefunded).
		Return(&domain.Payment{BookingID: "b-2", Status: domain.PaymentStatusRefunded}, nil)
	f.producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Execute(context.Background(), op)

	require.NoError(t, err)
	f.processor.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Execute_TerminalPaymentIsNoOp(t *testing.T) {
	f := newFixture()
	op := settlementOp(70000, 0, 0)
	refunded := &domain.Payment{BookingID: "b-2", Status: domain.PaymentStatusRefunded}

	f.expectLock("b-2")
	f.repo.On("GetPayment", mock.Anything, "b-2").Return(refunded, nil)

	got, err := f.svc.Execute(context.Background(), op)

	require.NoError(t, err)
	assert.Equal(t, refunded, got)
	f.processor.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Execute_DoneOpIsNoOp(t *testing.T) {
	f := newFixture()
	op := settlementOp(70000, 0, 0)
	op.Status = domain.EscrowOpDone
	f.repo.On("GetPayment", mock.Anything, "b-2").Return(&domain.Payment{Status: domain.PaymentStatusRefunded}, nil)

	_, err := f.svc.Execute(context.Background(), op)

	require.NoError(t, err)
	f.locker.AssertNotCalled(t, "AcquireBookingLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Execute_Locked(t *testing.T) {
	f := newFixture()
	f.locker.On("AcquireBookingLock", mock.Anything, "b-2", time.Minute).Return("", false, nil)

	_, err := f.svc.Execute(context.Background(), settlementOp(1, 0, 0))
	assert.ErrorIs(t, err, domain.ErrBookingLocked)
}

func TestCoordinator_Reconcile(t *testing.T) {
	f := newFixture()
	ok := *settlementOp(0, 0, 0)
	locked := *settlementOp(0, 0, 0)
	locked.ID, locked.BookingID, locked.IdempotencyKey = "op-2", "b-3", "b-3:settlement"

	f.repo.On("ClaimPending", mock.Anything, 50, 2*time.Minute).Return([]domain.EscrowOp{ok, locked}, nil)
	f.expectLock("b-2")
	f.locker.On("AcquireBookingLock", mock.Anything, "b-3", time.Minute).Return("", false, nil)
	f.repo.On("GetPayment", mock.Anything, "b-2").Return(refundPending(), nil)
	f.repo.On("Complete", mock.Anything, mock.Anything, domain.PaymentStatusCancelled).
		Return(&domain.Payment{BookingID: "b-2", Status: domain.PaymentStatusCancelled}, nil)

	n, err := f.svc.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCoordinator_PlaceHoldAndReverse(t *testing.T) {
	f := newFixture()
	booking := &domain.Booking{ID: "b-4", CustomerID: "c-4", TotalPriceCents: 35000}

	f.processor.On("Hold", mock.Anything, payments.HoldRequest{
		BookingID: "b-4", CustomerID: "c-4", PaymentMethod: "pm_card", AmountCents: 35000, IdempotencyKey: "b-4:hold",
	}).Return("pi_4", nil)
	f.processor.On("Refund", mock.Anything, "pi_4", int64(35000), mock.Anything, "b-4:hold:reverse").Return("re_4", nil)

	ref, err := f.svc.PlaceHold(context.Background(), booking, "pm_card")
	require.NoError(t, err)
	assert.Equal(t, "pi_4", ref)
	assert.NoError(t, f.svc.ReverseHold(context.Background(), booking, ref))
}

func TestCoordinator_RetryBackoff(t *testing.T) {
	c := NewCoordinator(nil, nil, nil, nil, nil, "")
	assert.Equal(t, 30*time.Second, c.retryAfter(0))
	assert.Equal(t, time.Minute, c.retryAfter(1))
	assert.Equal(t, 30*time.Minute, c.retryAfter(20))
}
