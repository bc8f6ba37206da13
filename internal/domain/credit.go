package domain

import "time"

type CustomerCredit struct {
	ID          string
	CustomerID  string
	AmountCents int64
	Reason      string
	BookingID   string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
