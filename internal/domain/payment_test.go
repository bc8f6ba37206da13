package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatus_Next(t *testing.T) {
	next, err := PaymentStatusHeld.Next(PaymentEventReleaseRequested)
	assert.NoError(t, err)
	assert.Equal(t, PaymentStatusReleasePending, next)

	next, err = next.Next(PaymentEventReleased)
	assert.NoError(t, err)
	assert.Equal(t, PaymentStatusReleased, next)

	next, err = PaymentStatusHeld.Next(PaymentEventRefundRequested)
	assert.NoError(t, err)
	assert.Equal(t, PaymentStatusRefundPending, next)

	refunded, err := next.Next(PaymentEventRefunded)
	assert.NoError(t, err)
	assert.Equal(t, PaymentStatusRefunded, refunded)

	voided, err := next.Next(PaymentEventVoided)
	assert.NoError(t, err)
	assert.Equal(t, PaymentStatusCancelled, voided)
}

func TestPaymentStatus_NeverLeavesTerminal(t *testing.T) {
	events := []PaymentEvent{
		PaymentEventReleaseRequested,
		PaymentEventReleased,
		PaymentEventRefundRequested,
		PaymentEventRefunded,
		PaymentEventVoided,
	}
	for _, s := range []PaymentStatus{PaymentStatusReleased, PaymentStatusRefunded, PaymentStatusCancelled} {
		assert.True(t, s.Terminal())
		for _, ev := range events {
			next, err := s.Next(ev)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, s, next)
		}
	}
}

func TestPaymentStatus_NoEdgeBackToHeld(t *testing.T) {
	all := []PaymentStatus{
		PaymentStatusHeld,
		PaymentStatusReleasePending,
		PaymentStatusRefundPending,
		PaymentStatusReleased,
		PaymentStatusRefunded,
		PaymentStatusCancelled,
	}
	events := []PaymentEvent{
		PaymentEventReleaseRequested,
		PaymentEventReleased,
		PaymentEventRefundRequested,
		PaymentEventRefunded,
		PaymentEventVoided,
	}
	for _, s := range all {
		for _, ev := range events {
			next, err := s.Next(ev)
			if err == nil {
				assert.NotEqual(t, PaymentStatusHeld, next, "%s -> %s", s, ev)
			}
		}
	}
}

func TestPaymentStatus_PendingRejectsCrossEvents(t *testing.T) {
	_, err := PaymentStatusReleasePending.Next(PaymentEventRefunded)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = PaymentStatusRefundPending.Next(PaymentEventReleased)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = PaymentStatusHeld.Next(PaymentEventReleased)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
