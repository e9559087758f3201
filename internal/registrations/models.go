package registrations

import (
	"time"

	"eventreg/internal/capacity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const PaymentStatusCompleted = "completed"

// Registration is a secured seat. It is never updated; cancelling deletes it.
type Registration struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_registration_user_event"`
	EventID       uuid.UUID  `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_registration_user_event;index"`
	TierID        *uuid.UUID `json:"tier_id,omitempty" gorm:"type:uuid;index"`
	ReservationID *uuid.UUID `json:"reservation_id,omitempty" gorm:"type:uuid"`
	FinalPrice    float64    `json:"final_price" gorm:"type:decimal(10,2);not null;default:0"`
	CreditsUsed   float64    `json:"credits_used" gorm:"type:decimal(10,2);not null;default:0"`
	PaymentID     *string    `json:"payment_id,omitempty" gorm:"size:255;uniqueIndex:idx_registration_payment"`
	PaymentStatus string     `json:"payment_status" gorm:"size:20;not null"`
	PaymentEmail  string     `json:"payment_email" gorm:"size:255"`
	RegisteredAt  time.Time  `json:"registered_at" gorm:"not null"`

	SubEvents []RegistrationSubEvent `json:"sub_events,omitempty" gorm:"foreignKey:RegistrationID"`
}

func (Registration) TableName() string { return capacity.TableRegistrations }

func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Registration) SubEventIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.SubEvents))
	for _, s := range r.SubEvents {
		ids = append(ids, s.SubEventID)
	}
	return ids
}

type RegistrationSubEvent struct {
	RegistrationID uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	SubEventID     uuid.UUID `json:"sub_event_id" gorm:"type:uuid;primaryKey;index"`
}

func (RegistrationSubEvent) TableName() string { return capacity.TableRegistrationSubEvents }

// Links builds join rows for sub-event ids
func Links(ids []uuid.UUID) []RegistrationSubEvent {
	out := make([]RegistrationSubEvent, 0, len(ids))
	for _, id := range ids {
		out = append(out, RegistrationSubEvent{SubEventID: id})
	}
	return out
}

// ConsumedPayment marks a payment id as spent. It is written with the
// registration and outlives it, so a cancelled registration's payment can
// never back another one or be refunded outside the refund workflow.
type ConsumedPayment struct {
	PaymentID      string    `json:"payment_id" gorm:"size:255;primaryKey"`
	RegistrationID uuid.UUID `json:"registration_id" gorm:"type:uuid;not null"`
	EventID        uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	Amount         float64   `json:"amount" gorm:"type:decimal(10,2);not null;default:0"`
	ConsumedAt     time.Time `json:"consumed_at" gorm:"not null"`
}

func (ConsumedPayment) TableName() string { return "consumed_payments" }
