package notifications

import (
	"context"

	"eventreg/internal/events"
	"eventreg/internal/refunds"
	"eventreg/internal/registrations"
	"eventreg/pkg/logger"
)

// Notifier turns registration and refund outcomes into queued emails. It is
// wired into both flows; a publish error is returned for logging only.
type Notifier struct {
	publisher Publisher
	log       *logger.Logger
}

func NewNotifier(publisher Publisher, log *logger.Logger) *Notifier {
	return &Notifier{publisher: publisher, log: log.WithComponent("notifier")}
}

func (n *Notifier) RegistrationConfirmed(ctx context.Context, reg *registrations.Registration, event *events.Event) error {
	if reg.PaymentEmail == "" {
		return nil
	}
	userID := reg.UserID
	b := NewMessage(TypeRegistrationConfirmed).
		To(&userID, reg.PaymentEmail).
		ForEvent(event.ID).
		Subject("Registration confirmed: "+event.Name).
		With("event_name", event.Name).
		With("starts_at", event.StartsAt.Format("Mon, 02 Jan 2006 15:04 MST")).
		With("registration_id", reg.ID.String()).
		With("final_price", reg.FinalPrice).
		With("currency", event.Currency)
	if reg.PaymentID != nil {
		b.With("payment_id", *reg.PaymentID)
	}
	return n.publisher.Publish(ctx, b.Build())
}

func (n *Notifier) RefundIssued(ctx context.Context, record *refunds.RefundRecord) error {
	if record.Email == "" {
		return nil
	}
	b := NewMessage(TypeRefundIssued).
		To(record.UserID, record.Email).
		Subject("Your refund is on its way").
		With("payment_id", record.PaymentID).
		With("refund_id", record.RefundID).
		With("amount", record.Amount).
		With("currency", record.Currency).
		With("reason", record.Reason)
	if record.EventID != nil {
		b.ForEvent(*record.EventID)
	}
	return n.publisher.Publish(ctx, b.Build())
}
