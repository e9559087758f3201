package credits

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditTransaction is one movement on a user's credit balance. Grants are
// positive, spends negative; the balance is their sum.
type CreditTransaction struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount    float64    `json:"amount" gorm:"type:decimal(10,2);not null"`
	Reason    string     `json:"reason" gorm:"size:255"`
	EventID   *uuid.UUID `json:"event_id,omitempty" gorm:"type:uuid;index"`
	CreatedBy string     `json:"created_by,omitempty" gorm:"size:100"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null"`
}

func (c *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

const (
	ReasonRegistration = "registration"
	ReasonGrant        = "grant"
)
