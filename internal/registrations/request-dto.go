package registrations

import "github.com/google/uuid"

// RegisterRequest covers both flows: with reservation_id it converts the
// hold, otherwise it registers directly against live capacity.
type RegisterRequest struct {
	UserID        uuid.UUID   `json:"user_id" binding:"required"`
	ReservationID *uuid.UUID  `json:"reservation_id"`
	PaymentID     string      `json:"payment_id" binding:"max=255"`
	PaymentEmail  string      `json:"payment_email" binding:"omitempty,email"`
	FinalPrice    *float64    `json:"final_price" binding:"omitempty,gte=0"`
	TierID        *uuid.UUID  `json:"tier_id"`
	SubEventIDs   []uuid.UUID `json:"sub_event_ids"`
	CreditsUsed   float64     `json:"credits_used" binding:"gte=0"`
	Audience      string      `json:"audience" binding:"max=50"`
}

type CancelRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type UserQuery struct {
	UserID string `form:"userId" binding:"required,uuid"`
}

type RegisterInput struct {
	UserID       uuid.UUID
	EventID      uuid.UUID
	TierID       *uuid.UUID
	SubEventIDs  []uuid.UUID
	CreditsUsed  float64
	FinalPrice   *float64
	PaymentID    string
	PaymentEmail string
	Audience     string
}

type ConvertInput struct {
	ReservationID uuid.UUID
	UserID        uuid.UUID
	EventID       uuid.UUID
	PaymentID     string
	PaymentEmail  string
	FinalPrice    *float64
}
