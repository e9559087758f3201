package refunds

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Source string

const (
	SourceCompensation   Source = "COMPENSATION"
	SourceManual         Source = "MANUAL"
	SourceReconciliation Source = "RECONCILIATION"
)

type FailureStatus string

const (
	FailurePending   FailureStatus = "PENDING"
	FailureResolved  FailureStatus = "RESOLVED"
	FailureAbandoned FailureStatus = "ABANDONED"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// RawJSON stores a gateway payload verbatim.
type RawJSON json.RawMessage

func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = RawJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into RawJSON", value)
	}
	return nil
}

func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// RefundRecord is the audit row for money sent back to a payer. One per payment.
type RefundRecord struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	PaymentID         string     `json:"payment_id" gorm:"size:255;not null;uniqueIndex"`
	RefundID          string     `json:"refund_id" gorm:"size:255;not null"`
	Amount            float64    `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency          string     `json:"currency" gorm:"size:3;not null"`
	Email             string     `json:"email" gorm:"size:255"`
	Reason            string     `json:"reason" gorm:"type:text"`
	RawGatewayPayload RawJSON    `json:"raw_gateway_payload,omitempty" gorm:"type:jsonb"`
	RefundDate        time.Time  `json:"refund_date" gorm:"not null"`
	ProcessedBy       string     `json:"processed_by" gorm:"size:100"`
	Source            Source     `json:"source" gorm:"size:20;not null"`
	EventID           *uuid.UUID `json:"event_id,omitempty" gorm:"type:uuid;index"`
	UserID            *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;index"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (RefundRecord) TableName() string { return "refund_records" }

func (r *RefundRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// CompensationFailure is a charge that should have been refunded but was
// not. Together these rows form the reconciliation report.
type CompensationFailure struct {
	ID            uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	PaymentID     string        `json:"payment_id" gorm:"size:255;not null;uniqueIndex"`
	Amount        float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency      string        `json:"currency" gorm:"size:3;not null"`
	Email         string        `json:"email" gorm:"size:255"`
	Reason        string        `json:"reason" gorm:"type:text"`
	LastError     string        `json:"last_error" gorm:"type:text"`
	Attempts      int           `json:"attempts" gorm:"not null;default:0"`
	Status        FailureStatus `json:"status" gorm:"size:20;not null;index"`
	NextAttemptAt time.Time     `json:"next_attempt_at" gorm:"index"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
	EventID       *uuid.UUID    `json:"event_id,omitempty" gorm:"type:uuid"`
	UserID        *uuid.UUID    `json:"user_id,omitempty" gorm:"type:uuid"`
	CreatedAt     time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

func (CompensationFailure) TableName() string { return "compensation_failures" }

func (f *CompensationFailure) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// request rebuilds the compensation that failed
func (f *CompensationFailure) request() CompensationRequest {
	return CompensationRequest{
		PaymentID: f.PaymentID,
		Amount:    f.Amount,
		Currency:  f.Currency,
		Email:     f.Email,
		Reason:    f.Reason,
		EventID:   f.EventID,
		UserID:    f.UserID,
		Source:    SourceCompensation,
	}
}

// RefundRequest is a user's ask for their money back, decided by an admin.
type RefundRequest struct {
	ID             uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	EventID        uuid.UUID     `json:"event_id" gorm:"type:uuid;not null;index:idx_refund_request_event_user"`
	UserID         uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;index:idx_refund_request_event_user"`
	RegistrationID uuid.UUID     `json:"registration_id" gorm:"type:uuid;not null"`
	PaymentID      string        `json:"payment_id" gorm:"size:255;not null"`
	Email          string        `json:"email" gorm:"size:255"`
	Amount         float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency       string        `json:"currency" gorm:"size:3;not null"`
	Reason         string        `json:"reason" gorm:"type:text"`
	Status         RequestStatus `json:"status" gorm:"size:20;not null;index"`
	RequestedAt    time.Time     `json:"requested_at" gorm:"not null"`
	ProcessedAt    *time.Time    `json:"processed_at,omitempty"`
	AdminNotes     string        `json:"admin_notes,omitempty" gorm:"type:text"`
	ProcessedBy    string        `json:"processed_by,omitempty" gorm:"size:100"`
}

func (RefundRequest) TableName() string { return "refund_requests" }

func (r *RefundRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
