package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/bushcharter/internal/kafka"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender turns booking events into customer and pilot notices. Delivery is
// a structured log line until a mail provider is wired in.
type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	msg, ok := Compose(event)
	if !ok {
		return nil
	}
	s.logger.InfoContext(ctx, "notification sent",
		"to", msg.To, "subject", msg.Subject, "booking_id", event.BookingID, "type", event.Type)
	return nil
}

// Compose renders the notice for event. Events nobody is told about return
// false.
func Compose(event kafka.BookingEvent) (Message, bool) {
	customer := "customer:" + event.CustomerID
	pilot := "pilot:" + event.PilotID

	switch event.Type {
	case kafka.EventBookingCreated:
		return Message{To: customer, Subject: "Booking received",
			Body: fmt.Sprintf("Your booking %s is waiting for pilot confirmation. %s is held in escrow.", event.BookingID, dollars(event.AmountCents))}, true
	case kafka.EventBookingConfirmed:
		return Message{To: customer, Subject: "Booking confirmed",
			Body: fmt.Sprintf("Your pilot confirmed booking %s.", event.BookingID)}, true
	case kafka.EventBookingCancelled, kafka.EventWeatherCancelled:
		return Message{To: customer, Subject: "Booking cancelled",
			Body: fmt.Sprintf("Booking %s was cancelled: %s.", event.BookingID, event.Reason)}, true
	case kafka.EventPaymentRefunded:
		return Message{To: customer, Subject: "Refund issued",
			Body: fmt.Sprintf("%s was refunded for booking %s.", dollars(event.AmountCents), event.BookingID)}, true
	case kafka.EventCreditIssued:
		return Message{To: customer, Subject: "Credit added",
			Body: fmt.Sprintf("%s of credit was added to your account for booking %s.", dollars(event.AmountCents), event.BookingID)}, true
	case kafka.EventPaymentReleased:
		return Message{To: pilot, Subject: "Payout released",
			Body: fmt.Sprintf("%s was released for booking %s.", dollars(event.AmountCents), event.BookingID)}, true
	}
	return Message{}, false
}

func dollars(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
