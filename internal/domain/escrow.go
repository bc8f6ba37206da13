package domain

import "time"

type EscrowOpKind string

const (
	EscrowOpRelease    EscrowOpKind = "release"
	EscrowOpSettlement EscrowOpKind = "settlement"
)

type EscrowOpStatus string

const (
	EscrowOpPending EscrowOpStatus = "pending"
	EscrowOpDone    EscrowOpStatus = "done"
	EscrowOpStuck   EscrowOpStatus = "stuck"
)

// EscrowOp is the durable record of one financial saga step for a booking.
// IdempotencyKey is unique per (booking, kind) and prefixes every key sent
// to the payment processor.
type EscrowOp struct {
	ID             string
	BookingID      string
	Kind           EscrowOpKind
	IdempotencyKey string
	Status         EscrowOpStatus

	RefundCents      int64
	PilotFeeCents    int64
	PlatformFeeCents int64
	PayoutCents      int64
	Reason           string

	RefundRef   *string
	TransferRef *string

	Attempts  int
	LastError *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func IdempotencyKey(bookingID string, kind EscrowOpKind) string {
	return bookingID + ":" + string(kind)
}
