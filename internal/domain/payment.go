package domain

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusHeld           PaymentStatus = "held"
	PaymentStatusReleasePending PaymentStatus = "release_pending"
	PaymentStatusRefundPending  PaymentStatus = "refund_pending"
	PaymentStatusReleased       PaymentStatus = "released"
	PaymentStatusRefunded       PaymentStatus = "refunded"
	PaymentStatusCancelled      PaymentStatus = "cancelled"
)

type PaymentEvent string

const (
	PaymentEventReleaseRequested PaymentEvent = "release_requested"
	PaymentEventReleased         PaymentEvent = "released"
	PaymentEventRefundRequested  PaymentEvent = "refund_requested"
	PaymentEventRefunded         PaymentEvent = "refunded"
	// PaymentEventVoided settles a cancellation in which nothing is returned
	// to the customer's card.
	PaymentEventVoided PaymentEvent = "voided"
)

// Next returns the status reached by applying ev, or ErrInvalidTransition.
// No edge leads back to held and terminal statuses accept nothing.
func (s PaymentStatus) Next(ev PaymentEvent) (PaymentStatus, error) {
	switch s {
	case PaymentStatusHeld:
		switch ev {
		case PaymentEventReleaseRequested:
			return PaymentStatusReleasePending, nil
		case PaymentEventRefundRequested:
			return PaymentStatusRefundPending, nil
		}
	case PaymentStatusReleasePending:
		if ev == PaymentEventReleased {
			return PaymentStatusReleased, nil
		}
	case PaymentStatusRefundPending:
		switch ev {
		case PaymentEventRefunded:
			return PaymentStatusRefunded, nil
		case PaymentEventVoided:
			return PaymentStatusCancelled, nil
		}
	case PaymentStatusReleased, PaymentStatusRefunded, PaymentStatusCancelled:
	default:
		return s, fmt.Errorf("%w: unknown payment status %q", ErrInvalidTransition, s)
	}
	return s, fmt.Errorf("%w: payment %s cannot accept %s", ErrInvalidTransition, s, ev)
}

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusReleased || s == PaymentStatusRefunded || s == PaymentStatusCancelled
}

type Payment struct {
	ID           string
	BookingID    string
	CustomerID   string
	PilotID      *string
	Amount       int64
	PlatformFee  int64
	PilotPayout  int64
	Status       PaymentStatus
	HoldRef      string
	TransferRef  *string
	RefundRef    *string
	RefundAmount *int64
	RefundReason *string
	ReleasedAt   *time.Time
	RefundedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
