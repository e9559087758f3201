package events

import "time"

type CreateEventRequest struct {
	Name              string                  `json:"name" binding:"required,min=3,max=255"`
	Description       string                  `json:"description" binding:"max=2000"`
	StartsAt          time.Time               `json:"starts_at" binding:"required"`
	Capacity          int                     `json:"capacity" binding:"required,min=1,max=100000"`
	Fee               float64                 `json:"fee" binding:"min=0"`
	Currency          string                  `json:"currency" binding:"omitempty,len=3"`
	AdvancedTicketing bool                    `json:"advanced_ticketing"`
	HasSubEvents      bool                    `json:"has_sub_events"`
	RefundDeadline    *time.Time              `json:"refund_deadline"`
	Tiers             []CreateTierRequest     `json:"tiers" binding:"omitempty,dive"`
	SubEvents         []CreateSubEventRequest `json:"sub_events" binding:"omitempty,dive"`
}

type CreateTierRequest struct {
	Name           string     `json:"name" binding:"required,max=100"`
	Price          float64    `json:"price" binding:"min=0"`
	Capacity       int        `json:"capacity" binding:"required,min=1"`
	TargetAudience string     `json:"target_audience" binding:"max=50"`
	SortOrder      int        `json:"sort_order"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
}

type CreateSubEventRequest struct {
	Name       string  `json:"name" binding:"required,max=255"`
	Price      float64 `json:"price" binding:"min=0"`
	Capacity   int     `json:"capacity" binding:"required,min=1"`
	Combinable bool    `json:"combinable"`
	Standalone bool    `json:"standalone"`
}

type ListQuery struct {
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=20" binding:"min=1,max=100"`
}
