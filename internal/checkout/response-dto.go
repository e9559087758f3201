package checkout

import (
	"time"

	"eventreg/internal/capacity"

	"github.com/google/uuid"
)

type CapacityResponse struct {
	EventID   uuid.UUID        `json:"event_id"`
	Event     capacity.Usage   `json:"event"`
	Tiers     []capacity.Usage `json:"tiers"`
	SubEvents []capacity.Usage `json:"sub_events"`
}

type TierOption struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Price       float64    `json:"price"`
	Available   int        `json:"available"`
	OpenedEarly bool       `json:"opened_early"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type SubEventOption struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Available  int       `json:"available"`
	Combinable bool      `json:"combinable"`
	Standalone bool      `json:"standalone"`
}

type TicketOptionsResponse struct {
	EventID   uuid.UUID        `json:"event_id"`
	Audience  string           `json:"audience,omitempty"`
	AsOf      time.Time        `json:"as_of"`
	Fee       float64          `json:"fee"`
	Currency  string           `json:"currency"`
	Tiers     []TierOption     `json:"tiers"`
	SubEvents []SubEventOption `json:"sub_events"`
}

// TicketOptionsQuery binds ?audience=&at=
type TicketOptionsQuery struct {
	Audience string `form:"audience"`
	At       string `form:"at"` // RFC 3339
}
