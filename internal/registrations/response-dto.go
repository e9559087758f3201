package registrations

import (
	"time"

	"github.com/google/uuid"
)

type RegistrationResponse struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"user_id"`
	EventID       uuid.UUID   `json:"event_id"`
	TierID        *uuid.UUID  `json:"tier_id,omitempty"`
	ReservationID *uuid.UUID  `json:"reservation_id,omitempty"`
	SubEventIDs   []uuid.UUID `json:"sub_event_ids"`
	FinalPrice    float64     `json:"final_price"`
	CreditsUsed   float64     `json:"credits_used"`
	PaymentID     *string     `json:"payment_id,omitempty"`
	PaymentStatus string      `json:"payment_status"`
	PaymentEmail  string      `json:"payment_email,omitempty"`
	RegisteredAt  time.Time   `json:"registered_at"`
}

func (r *Registration) ToResponse() RegistrationResponse {
	return RegistrationResponse{
		ID:            r.ID,
		UserID:        r.UserID,
		EventID:       r.EventID,
		TierID:        r.TierID,
		ReservationID: r.ReservationID,
		SubEventIDs:   r.SubEventIDs(),
		FinalPrice:    r.FinalPrice,
		CreditsUsed:   r.CreditsUsed,
		PaymentID:     r.PaymentID,
		PaymentStatus: r.PaymentStatus,
		PaymentEmail:  r.PaymentEmail,
		RegisteredAt:  r.RegisteredAt,
	}
}
