package registrations

import (
	"context"

	"eventreg/internal/events"
	"eventreg/internal/payments"
	"eventreg/internal/refunds"

	"github.com/google/uuid"
)

// Payment is the proof of payment carried into a registration.
type Payment struct {
	ID    string
	Email string
}

// HeldReservation is what conversion needs to know before verifying payment.
type HeldReservation struct {
	ID           uuid.UUID
	EventID      uuid.UUID
	QuotedPrice  float64
	CreditsUsed  float64
	PaymentEmail string
}

// ReservationStore is implemented by the reservations package.
type ReservationStore interface {
	Lookup(ctx context.Context, reservationID, userID uuid.UUID) (*HeldReservation, error)
	Convert(ctx context.Context, reservationID, userID uuid.UUID, payment Payment) (*Registration, error)
}

type PaymentVerifier interface {
	Verify(ctx context.Context, paymentID string, expected float64) (*payments.Verification, error)
}

type Compensator interface {
	Compensate(ctx context.Context, req refunds.CompensationRequest) (*refunds.Result, error)
}

type Credits interface {
	Balance(ctx context.Context, userID uuid.UUID) (float64, error)
	Deduct(ctx context.Context, userID uuid.UUID, amount float64, eventID uuid.UUID) error
}

type Notifier interface {
	RegistrationConfirmed(ctx context.Context, reg *Registration, event *events.Event) error
}

// AvailabilityCache drops cached capacity after seats change hands.
type AvailabilityCache interface {
	Invalidate(ctx context.Context, eventID uuid.UUID)
}
