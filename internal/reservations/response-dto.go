package reservations

import (
	"time"

	"github.com/google/uuid"
)

type ReserveResponse struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	QuotedPrice   float64   `json:"quoted_price"`
}

type ReservationResponse struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	EventID     uuid.UUID   `json:"event_id"`
	TierID      *uuid.UUID  `json:"tier_id,omitempty"`
	SubEventIDs []uuid.UUID `json:"sub_event_ids"`
	CreditsUsed float64     `json:"credits_used"`
	QuotedPrice float64     `json:"quoted_price"`
	State       State       `json:"state"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	ClosedAt    *time.Time  `json:"closed_at,omitempty"`
}

func (r *Reservation) ToResponse() ReservationResponse {
	return ReservationResponse{
		ID:          r.ID,
		UserID:      r.UserID,
		EventID:     r.EventID,
		TierID:      r.TierID,
		SubEventIDs: r.SubEventIDs(),
		CreditsUsed: r.CreditsUsed,
		QuotedPrice: r.QuotedPrice,
		State:       r.State,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		ClosedAt:    r.ClosedAt,
	}
}
