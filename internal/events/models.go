package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AudienceAll matches every caller. An empty tier audience means the same.
const AudienceAll = "all"

type Event struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name              string     `json:"name" gorm:"not null;size:255"`
	Description       string     `json:"description" gorm:"type:text"`
	StartsAt          time.Time  `json:"starts_at" gorm:"not null"`
	Capacity          int        `json:"capacity" gorm:"not null;check:capacity >= 0"`
	Fee               float64    `json:"fee" gorm:"type:decimal(10,2);not null;default:0;check:fee >= 0"`
	Currency          string     `json:"currency" gorm:"size:3;not null;default:'CAD'"`
	AdvancedTicketing bool       `json:"advanced_ticketing" gorm:"not null;default:false"`
	HasSubEvents      bool       `json:"has_sub_events" gorm:"not null;default:false"`
	RefundDeadline    *time.Time `json:"refund_deadline,omitempty"`

	Tiers     []TicketTier `json:"tiers,omitempty" gorm:"foreignKey:EventID"`
	SubEvents []SubEvent   `json:"sub_events,omitempty" gorm:"foreignKey:EventID"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// RefundCutoff is the last instant a refund may be requested: the configured
// deadline, or the event start when none is set.
func (e *Event) RefundCutoff() time.Time {
	if e.RefundDeadline != nil {
		return *e.RefundDeadline
	}
	return e.StartsAt
}

type TicketTier struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	EventID        uuid.UUID  `json:"event_id" gorm:"type:uuid;not null;index"`
	Name           string     `json:"name" gorm:"not null;size:100"`
	Price          float64    `json:"price" gorm:"type:decimal(10,2);not null;check:price >= 0"`
	Capacity       int        `json:"capacity" gorm:"not null;check:capacity >= 0"`
	TargetAudience string     `json:"target_audience" gorm:"size:50"`
	SortOrder      int        `json:"sort_order" gorm:"not null;default:0"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
}

func (t *TicketTier) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// MatchesAudience reports whether a caller in audience may buy this tier.
func (t *TicketTier) MatchesAudience(audience string) bool {
	if t.TargetAudience == "" || strings.EqualFold(t.TargetAudience, AudienceAll) {
		return true
	}
	return strings.EqualFold(t.TargetAudience, audience)
}

// InWindow reports whether asOf falls inside the tier's activation window.
// Either bound may be absent.
func (t *TicketTier) InWindow(asOf time.Time) bool {
	return t.StartedBy(asOf) && !t.EndedBy(asOf)
}

func (t *TicketTier) StartedBy(asOf time.Time) bool {
	return t.StartDate == nil || !asOf.Before(*t.StartDate)
}

func (t *TicketTier) EndedBy(asOf time.Time) bool {
	return t.EndDate != nil && asOf.After(*t.EndDate)
}

type SubEvent struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	EventID    uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	Name       string    `json:"name" gorm:"not null;size:255"`
	Price      float64   `json:"price" gorm:"type:decimal(10,2);not null;default:0;check:price >= 0"`
	Capacity   int       `json:"capacity" gorm:"not null;check:capacity >= 0"`
	Combinable bool      `json:"combinable" gorm:"not null;default:false"`
	Standalone bool      `json:"standalone" gorm:"not null;default:false"`
}

func (s *SubEvent) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
