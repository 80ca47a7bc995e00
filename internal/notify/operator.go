package notify

import (
	"context"
	"fmt"

	"github.com/okhlopkov/salon-assistant/internal/booking"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// OperatorEmail emails salon staff when a booking is confirmed. A nil
// notifier is valid and does nothing, so wiring it stays optional.
type OperatorEmail struct {
	sender EmailSender
	to     string
	salon  string
	logger *logging.Logger
}

func NewOperatorEmail(sender EmailSender, to, salon string, logger *logging.Logger) *OperatorEmail {
	if sender == nil || to == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OperatorEmail{sender: sender, to: to, salon: salon, logger: logger}
}

func (n *OperatorEmail) BookingConfirmed(ctx context.Context, b booking.Booking) error {
	if n == nil {
		return nil
	}

	msg := EmailMessage{
		To:      n.to,
		Subject: fmt.Sprintf("Новий запис: %s %s %s", b.Procedure, b.Date, b.Slot),
		Body: fmt.Sprintf("Клієнт %s (%s) записався на %s.\nДата: %s\nЧас: %s\nСалон: %s\n",
			b.ClientName, b.ClientID, b.Procedure, b.Date, b.Slot, n.salon),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: operator email: %w", err)
	}

	n.logger.Info("operator notified", "booking_id", b.ID, "to", n.to)
	return nil
}
