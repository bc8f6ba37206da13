package payments

import "context"

type HoldRequest struct {
	BookingID      string
	CustomerID     string
	PaymentMethod  string
	AmountCents    int64
	IdempotencyKey string
}

// Processor moves money on behalf of the escrow. Every call carries an
// idempotency key; repeating a call with the same key returns the original
// reference without moving money twice.
type Processor interface {
	// Hold charges the customer into the platform balance.
	Hold(ctx context.Context, req HoldRequest) (string, error)
	// Transfer pays amountCents out of a hold to a connected account.
	Transfer(ctx context.Context, holdRef, destination string, amountCents int64, idempotencyKey string) (string, error)
	// Refund returns amountCents of a hold to the customer.
	Refund(ctx context.Context, holdRef string, amountCents int64, reason, idempotencyKey string) (string, error)
}
