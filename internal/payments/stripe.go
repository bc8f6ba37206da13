package payments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProcessor implements the escrow with Stripe Connect: the charge
// lands on the platform account and payouts are transfers to the pilot's
// connected account.
type StripeProcessor struct {
	api      *client.API
	currency string
	logger   *slog.Logger
}

func NewStripeProcessor(secretKey, currency string, logger *slog.Logger) *StripeProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProcessor{api: sc, currency: currency, logger: logger}
}

func (p *StripeProcessor) Hold(ctx context.Context, req HoldRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(p.currency),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Confirm:       stripe.Bool(true),
		TransferGroup: stripe.String(req.BookingID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("booking_id", req.BookingID)
	params.AddMetadata("customer_id", req.CustomerID)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create payment intent: %w", domain.ErrPaymentProcessor, err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("%w: payment intent %s is %s", domain.ErrPaymentProcessor, pi.ID, pi.Status)
	}

	p.logger.Info("payment held", "booking_id", req.BookingID, "payment_intent", pi.ID, "amount", req.AmountCents)
	return pi.ID, nil
}

func (p *StripeProcessor) Transfer(ctx context.Context, holdRef, destination string, amountCents int64, idempotencyKey string) (string, error) {
	pi, err := p.api.PaymentIntents.Get(holdRef, &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return "", fmt.Errorf("%w: load payment intent %s: %w", domain.ErrPaymentProcessor, holdRef, err)
	}

	params := &stripe.TransferParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(p.currency),
		Destination:   stripe.String(destination),
		TransferGroup: stripe.String(pi.TransferGroup),
	}
	if pi.LatestCharge != nil {
		params.SourceTransaction = stripe.String(pi.LatestCharge.ID)
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	tr, err := p.api.Transfers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create transfer: %w", domain.ErrPaymentProcessor, err)
	}
	return tr.ID, nil
}

func (p *StripeProcessor) Refund(ctx context.Context, holdRef string, amountCents int64, reason, idempotencyKey string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(holdRef),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	r, err := p.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create refund: %w", domain.ErrPaymentProcessor, err)
	}
	return r.ID, nil
}

var _ Processor = (*StripeProcessor)(nil)
