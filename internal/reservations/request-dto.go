package reservations

import "github.com/google/uuid"

type ReserveRequest struct {
	UserID       uuid.UUID   `json:"user_id" binding:"required"`
	TierID       *uuid.UUID  `json:"tier_id"`
	SubEventIDs  []uuid.UUID `json:"sub_event_ids"`
	CreditsUsed  float64     `json:"credits_used" binding:"gte=0"`
	FinalPrice   *float64    `json:"final_price" binding:"omitempty,gte=0"`
	PaymentEmail string      `json:"payment_email" binding:"omitempty,email"`
	Audience     string      `json:"audience" binding:"max=50"`
}

type UserQuery struct {
	UserID string `form:"userId" binding:"required,uuid"`
}
