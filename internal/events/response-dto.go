package events

import "time"

type EventResponse struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	StartsAt          time.Time          `json:"starts_at"`
	Capacity          int                `json:"capacity"`
	Fee               float64            `json:"fee"`
	Currency          string             `json:"currency"`
	AdvancedTicketing bool               `json:"advanced_ticketing"`
	HasSubEvents      bool               `json:"has_sub_events"`
	RefundDeadline    *time.Time         `json:"refund_deadline,omitempty"`
	Tiers             []TierResponse     `json:"tiers"`
	SubEvents         []SubEventResponse `json:"sub_events"`
	CreatedAt         time.Time          `json:"created_at"`
}

type TierResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Price          float64    `json:"price"`
	Capacity       int        `json:"capacity"`
	TargetAudience string     `json:"target_audience,omitempty"`
	SortOrder      int        `json:"sort_order"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
}

type SubEventResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Capacity   int     `json:"capacity"`
	Combinable bool    `json:"combinable"`
	Standalone bool    `json:"standalone"`
}

type PaginatedEvents struct {
	Events     []EventResponse `json:"events"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
}

func (e *Event) ToResponse() EventResponse {
	resp := EventResponse{
		ID:                e.ID.String(),
		Name:              e.Name,
		Description:       e.Description,
		StartsAt:          e.StartsAt,
		Capacity:          e.Capacity,
		Fee:               e.Fee,
		Currency:          e.Currency,
		AdvancedTicketing: e.AdvancedTicketing,
		HasSubEvents:      e.HasSubEvents,
		RefundDeadline:    e.RefundDeadline,
		Tiers:             make([]TierResponse, 0, len(e.Tiers)),
		SubEvents:         make([]SubEventResponse, 0, len(e.SubEvents)),
		CreatedAt:         e.CreatedAt,
	}
	for _, t := range e.Tiers {
		resp.Tiers = append(resp.Tiers, TierResponse{
			ID:             t.ID.String(),
			Name:           t.Name,
			Price:          t.Price,
			Capacity:       t.Capacity,
			TargetAudience: t.TargetAudience,
			SortOrder:      t.SortOrder,
			StartDate:      t.StartDate,
			EndDate:        t.EndDate,
		})
	}
	for _, s := range e.SubEvents {
		resp.SubEvents = append(resp.SubEvents, SubEventResponse{
			ID:         s.ID.String(),
			Name:       s.Name,
			Price:      s.Price,
			Capacity:   s.Capacity,
			Combinable: s.Combinable,
			Standalone: s.Standalone,
		})
	}
	return resp
}
