// Package policy maps the cause and timing of a cancellation to the way the
// escrowed booking price is split. Everything here is pure.
package policy

import "fmt"

type Cause string

const (
	CauseCustomer       Cause = "customer"
	CauseCustomerNoShow Cause = "customer_no_show"
	CausePilot          Cause = "pilot"
	CausePilotNoShow    Cause = "pilot_no_show"
	CauseWeather        Cause = "weather"
)

func ParseCause(s string) (Cause, error) {
	switch c := Cause(s); c {
	case CauseCustomer, CauseCustomerNoShow, CausePilot, CausePilotNoShow, CauseWeather:
		return c, nil
	}
	return "", fmt.Errorf("unknown cancellation cause %q", s)
}

// PilotCompensationCents is the flat credit issued when the pilot cancels or
// does not show up.
const PilotCompensationCents int64 = 10000

type Decision struct {
	Cause              Cause   `json:"cause"`
	RefundPercent      int     `json:"refund_percent"`
	PilotFeePercent    int     `json:"pilot_fee_percent"`
	PlatformFeePercent int     `json:"platform_fee_percent"`
	CreditPercent      int     `json:"credit_percent"`
	CreditFlatCents    int64   `json:"credit_flat_cents"`
	CreditReason       string  `json:"credit_reason,omitempty"`
	HoursUntilFlight   float64 `json:"hours_until_flight"`
}

// Decide returns the refund and fee split for a cancellation. Weather and
// pilot causes ignore the hours table.
func Decide(cause Cause, hoursUntilFlight float64) Decision {
	d := Decision{Cause: cause, HoursUntilFlight: hoursUntilFlight}

	switch cause {
	case CauseWeather:
		// Credit, not refund: the held funds are never returned to the card.
		d.CreditPercent = 100
		d.CreditReason = "Weather cancellation credit"
	case CausePilot:
		d.RefundPercent = 100
		d.CreditFlatCents = PilotCompensationCents
		d.CreditReason = "Pilot cancellation compensation"
	case CausePilotNoShow:
		d.RefundPercent = 100
		d.CreditFlatCents = PilotCompensationCents
		d.CreditReason = "Pilot no-show compensation"
	case CauseCustomerNoShow:
		d.PilotFeePercent, d.PlatformFeePercent = 80, 20
	default:
		switch {
		case hoursUntilFlight >= 48:
			d.RefundPercent = 100
		case hoursUntilFlight >= 24:
			d.RefundPercent, d.PilotFeePercent = 50, 50
		default:
			d.PilotFeePercent, d.PlatformFeePercent = 80, 20
		}
	}
	return d
}

// Settlement is a Decision applied to a concrete price, in cents.
type Settlement struct {
	RefundCents      int64 `json:"refund_cents"`
	PilotFeeCents    int64 `json:"pilot_fee_cents"`
	PlatformFeeCents int64 `json:"platform_fee_cents"`
	CreditCents      int64 `json:"credit_cents"`
}

func (d Decision) Settle(totalCents int64) Settlement {
	s := Settlement{
		RefundCents:      totalCents * int64(d.RefundPercent) / 100,
		PilotFeeCents:    totalCents * int64(d.PilotFeePercent) / 100,
		PlatformFeeCents: totalCents * int64(d.PlatformFeePercent) / 100,
		CreditCents:      totalCents*int64(d.CreditPercent)/100 + d.CreditFlatCents,
	}

	if d.RefundPercent+d.PilotFeePercent+d.PlatformFeePercent == 100 {
		rest := totalCents - s.RefundCents - s.PilotFeeCents - s.PlatformFeeCents
		if d.RefundPercent > 0 {
			s.RefundCents += rest
		} else {
			s.PlatformFeeCents += rest
		}
	}
	return s
}

// Returned reports whether any money goes back to the customer's card.
func (s Settlement) Returned() bool {
	return s.RefundCents > 0
}
