package refunds

import (
	"time"

	"github.com/google/uuid"
)

type CreateRefundRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Reason string    `json:"reason" binding:"required,max=1000"`
}

type DecideRefundRequest struct {
	AdminNotes string `json:"admin_notes" binding:"max=1000"`
}

type ListRequestsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
}

type ListFailuresQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING RESOLVED ABANDONED"`
}

// ListUnregisteredQuery takes an RFC 3339 start; empty means the default lookback.
type ListUnregisteredQuery struct {
	Since time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
}

type ListRefundsQuery struct {
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=20" binding:"min=1,max=100"`
}

type PaginatedRefunds struct {
	Refunds    []RefundRecord `json:"refunds"`
	TotalCount int64          `json:"total_count"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
}
