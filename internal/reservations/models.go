package reservations

import (
	"time"

	"eventreg/internal/capacity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type State string

// HELD is the only live state; the rest are terminal.
const (
	StateHeld      State = capacity.HeldState
	StateConverted State = "CONVERTED"
	StateCancelled State = "CANCELLED"
	StateExpired   State = "EXPIRED"
)

// Reservation is a time-boxed hold on one seat while the user pays.
type Reservation struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index:idx_reservation_user_event"`
	EventID      uuid.UUID  `json:"event_id" gorm:"type:uuid;not null;index:idx_reservation_user_event;index"`
	TierID       *uuid.UUID `json:"tier_id,omitempty" gorm:"type:uuid;index"`
	CreditsUsed  float64    `json:"credits_used" gorm:"type:decimal(10,2);not null;default:0"`
	QuotedPrice  float64    `json:"quoted_price" gorm:"type:decimal(10,2);not null;default:0"`
	PaymentEmail string     `json:"payment_email,omitempty" gorm:"size:255"`
	State        State      `json:"state" gorm:"size:16;not null;index"`
	CreatedAt    time.Time  `json:"created_at" gorm:"not null"`
	ExpiresAt    time.Time  `json:"expires_at" gorm:"not null;index"`
	ClosedAt     *time.Time `json:"closed_at,omitempty" gorm:"index"`

	SubEvents []ReservationSubEvent `json:"sub_events,omitempty" gorm:"foreignKey:ReservationID"`
}

func (Reservation) TableName() string { return capacity.TableReservations }

func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Live reports whether the hold still consumes a seat at now
func (r *Reservation) Live(now time.Time) bool {
	return r.State == StateHeld && r.ExpiresAt.After(now)
}

func (r *Reservation) SubEventIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.SubEvents))
	for _, s := range r.SubEvents {
		ids = append(ids, s.SubEventID)
	}
	return ids
}

type ReservationSubEvent struct {
	ReservationID uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	SubEventID    uuid.UUID `json:"sub_event_id" gorm:"type:uuid;primaryKey;index"`
}

func (ReservationSubEvent) TableName() string { return capacity.TableReservationSubEvents }
