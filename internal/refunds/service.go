package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventreg/internal/events"
	"eventreg/internal/payments"
	"eventreg/internal/shared/apperrors"
	"eventreg/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaidRegistration is what a refund needs to know about a registration.
type PaidRegistration struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	UserID    uuid.UUID
	PaymentID string
	Amount    float64
	Email     string
}

// RegistrationLookup is implemented by the registration flow.
type RegistrationLookup interface {
	Lookup(ctx context.Context, eventID, userID uuid.UUID) (*PaidRegistration, error)
	Cancel(ctx context.Context, eventID, userID uuid.UUID) error
	// UsedPayments reports which payment ids ever backed a registration,
	// cancelled ones included.
	UsedPayments(ctx context.Context, paymentIDs []string) (map[string]bool, error)
}

// Service is the manual refund workflow plus the admin views over refunds.
type Service interface {
	RequestRefund(ctx context.Context, eventID uuid.UUID, req CreateRefundRequest) (*RefundRequest, error)
	ListRequests(ctx context.Context, status string) ([]RefundRequest, error)
	Approve(ctx context.Context, requestID uuid.UUID, adminID, notes string) (*RefundRequest, error)
	Reject(ctx context.Context, requestID uuid.UUID, adminID, notes string) (*RefundRequest, error)

	ListRefunds(ctx context.Context, query ListRefundsQuery) (*PaginatedRefunds, error)
	ListFailures(ctx context.Context, status string) ([]CompensationFailure, error)
	RetryFailure(ctx context.Context, paymentID string) (*Result, error)

	ListUnregistered(ctx context.Context, since time.Time) ([]UnregisteredPayment, error)
	RefundUnregistered(ctx context.Context, paymentID, adminID string) (*Result, error)
}

type service struct {
	db            *gorm.DB
	compensator   *Compensator
	registrations RegistrationLookup
	currency      string
	log           *logger.Logger
}

func NewService(db *gorm.DB, compensator *Compensator, registrations RegistrationLookup, currency string, log *logger.Logger) Service {
	return &service{
		db:            db,
		compensator:   compensator,
		registrations: registrations,
		currency:      currency,
		log:           log.WithComponent("refunds"),
	}
}

func (s *service) RequestRefund(ctx context.Context, eventID uuid.UUID, req CreateRefundRequest) (*RefundRequest, error) {
	db := s.db.WithContext(ctx)
	event, err := events.Find(db, eventID)
	if err != nil {
		return nil, err
	}

	now := s.compensator.now()
	if now.After(event.RefundCutoff()) {
		return nil, apperrors.New(apperrors.CodeRefundNotAllowed, "the refund deadline for this event has passed")
	}

	reg, err := s.registrations.Lookup(ctx, eventID, req.UserID)
	if err != nil {
		return nil, err
	}
	if reg.PaymentID == "" || reg.Amount <= 0 {
		return nil, apperrors.New(apperrors.CodeRefundNotAllowed, "nothing was paid for this registration")
	}

	var existing RefundRequest
	err = db.Where("event_id = ? AND user_id = ? AND status = ?", eventID, req.UserID, RequestPending).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check refund requests: %w", err)
	}

	currency := event.Currency
	if currency == "" {
		currency = s.currency
	}
	rr := &RefundRequest{
		EventID:        eventID,
		UserID:         req.UserID,
		RegistrationID: reg.ID,
		PaymentID:      reg.PaymentID,
		Email:          reg.Email,
		Amount:         reg.Amount,
		Currency:       currency,
		Reason:         req.Reason,
		Status:         RequestPending,
		RequestedAt:    now,
	}
	if err := db.Create(rr).Error; err != nil {
		return nil, fmt.Errorf("failed to create refund request: %w", err)
	}

	s.log.Info("refund requested", "request_id", rr.ID, "event_id", eventID, "user_id", req.UserID, "amount", rr.Amount)
	return rr, nil
}

func (s *service) ListRequests(ctx context.Context, status string) ([]RefundRequest, error) {
	q := s.db.WithContext(ctx).Order("requested_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []RefundRequest
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list refund requests: %w", err)
	}
	return out, nil
}

// Approve refunds through the same idempotent path as automatic
// compensation, then frees the seat.
func (s *service) Approve(ctx context.Context, requestID uuid.UUID, adminID, notes string) (*RefundRequest, error) {
	rr, err := s.pending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	eventID, userID := rr.EventID, rr.UserID
	_, err = s.compensator.Compensate(ctx, CompensationRequest{
		PaymentID:   rr.PaymentID,
		Amount:      rr.Amount,
		Currency:    rr.Currency,
		Email:       rr.Email,
		Reason:      "manual refund: " + rr.Reason,
		EventID:     &eventID,
		UserID:      &userID,
		Source:      SourceManual,
		ProcessedBy: adminID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.registrations.Cancel(ctx, eventID, userID); err != nil && !errors.Is(err, apperrors.ErrRegistrationNotFound) {
		return nil, err
	}

	return s.decide(ctx, rr, RequestApproved, adminID, notes)
}

func (s *service) Reject(ctx context.Context, requestID uuid.UUID, adminID, notes string) (*RefundRequest, error) {
	rr, err := s.pending(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, rr, RequestRejected, adminID, notes)
}

func (s *service) pending(ctx context.Context, requestID uuid.UUID) (*RefundRequest, error) {
	var rr RefundRequest
	err := s.db.WithContext(ctx).Where("id = ?", requestID).First(&rr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrRefundRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load refund request: %w", err)
	}
	if rr.Status != RequestPending {
		return nil, apperrors.New(apperrors.CodeRefundNotAllowed, "refund request was already "+string(rr.Status))
	}
	return &rr, nil
}

func (s *service) decide(ctx context.Context, rr *RefundRequest, status RequestStatus, adminID, notes string) (*RefundRequest, error) {
	now := s.compensator.now()
	res := s.db.WithContext(ctx).Model(&RefundRequest{}).
		Where("id = ? AND status = ?", rr.ID, RequestPending).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": now,
			"processed_by": adminID,
			"admin_notes":  notes,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update refund request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.New(apperrors.CodeRefundNotAllowed, "refund request was decided concurrently")
	}

	rr.Status = status
	rr.ProcessedAt = &now
	rr.ProcessedBy = adminID
	rr.AdminNotes = notes
	s.log.Info("refund request decided", "request_id", rr.ID, "status", status, "admin_id", adminID)
	return rr, nil
}

func (s *service) ListRefunds(ctx context.Context, query ListRefundsQuery) (*PaginatedRefunds, error) {
	var (
		list  []RefundRecord
		total int64
	)
	base := s.db.WithContext(ctx).Model(&RefundRecord{})
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count refunds: %w", err)
	}
	err := base.Order("refund_date DESC").Limit(query.Limit).Offset((query.Page - 1) * query.Limit).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return &PaginatedRefunds{Refunds: list, TotalCount: total, Page: query.Page, Limit: query.Limit}, nil
}

func (s *service) ListFailures(ctx context.Context, status string) ([]CompensationFailure, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []CompensationFailure
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list compensation failures: %w", err)
	}
	return out, nil
}

// RetryFailure forces an immediate attempt, ABANDONED rows included
func (s *service) RetryFailure(ctx context.Context, paymentID string) (*Result, error) {
	var f CompensationFailure
	err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeRefundRequestNotFound, "no failed compensation for this payment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load compensation failure: %w", err)
	}
	return s.compensator.Compensate(ctx, f.request())
}

// DefaultUnregisteredLookback is how far back the unregistered-payments
// report looks when no start is given.
const DefaultUnregisteredLookback = 30 * 24 * time.Hour

// UnregisteredPayment is a captured charge that backs no registration and
// was never refunded.
type UnregisteredPayment struct {
	PaymentID string    `json:"payment_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// PendingRetry is set when a failed compensation is already queued for it
	PendingRetry bool `json:"pending_retry"`
}

// ListUnregistered diffs the processor's payments since the given time
// against registrations and refund records.
func (s *service) ListUnregistered(ctx context.Context, since time.Time) ([]UnregisteredPayment, error) {
	if since.IsZero() {
		since = s.compensator.now().Add(-DefaultUnregisteredLookback)
	}

	list, err := s.compensator.gateway.ListPayments(ctx, since)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRefundFailed, "could not list payments", err)
	}

	captured := make([]payments.Payment, 0, len(list))
	ids := make([]string, 0, len(list))
	for _, p := range list {
		if p.CapturedMinor() > 0 {
			captured = append(captured, p)
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return []UnregisteredPayment{}, nil
	}

	used, err := s.registrations.UsedPayments(ctx, ids)
	if err != nil {
		return nil, err
	}

	var refunded, queued []string
	db := s.db.WithContext(ctx)
	if err := db.Model(&RefundRecord{}).Where("payment_id IN ?", ids).Pluck("payment_id", &refunded).Error; err != nil {
		return nil, fmt.Errorf("failed to check refund records: %w", err)
	}
	err = db.Model(&CompensationFailure{}).Where("payment_id IN ? AND status = ?", ids, FailurePending).Pluck("payment_id", &queued).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check compensation failures: %w", err)
	}
	for _, id := range refunded {
		used[id] = true
	}
	pending := make(map[string]bool, len(queued))
	for _, id := range queued {
		pending[id] = true
	}

	out := make([]UnregisteredPayment, 0)
	for _, p := range captured {
		if used[p.ID] {
			continue
		}
		out = append(out, UnregisteredPayment{
			PaymentID:    p.ID,
			Amount:       payments.FromMinor(p.CapturedMinor()),
			Currency:     p.Currency,
			Email:        p.Email,
			CreatedAt:    p.CreatedAt,
			PendingRetry: pending[p.ID],
		})
	}

	s.log.Info("unregistered payments listed", "since", since, "payments", len(list), "unregistered", len(out))
	return out, nil
}

// RefundUnregistered sends back the whole captured amount of a payment that
// backs no registration, through the idempotent compensation path.
func (s *service) RefundUnregistered(ctx context.Context, paymentID, adminID string) (*Result, error) {
	p, err := s.compensator.gateway.GetPayment(ctx, paymentID)
	if errors.Is(err, payments.ErrPaymentNotFound) {
		return nil, apperrors.Wrap(apperrors.CodePaymentNotFound, "payment not found", err)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRefundFailed, "could not read payment", err)
	}

	used, err := s.registrations.UsedPayments(ctx, []string{paymentID})
	if err != nil {
		return nil, err
	}
	if used[paymentID] {
		return nil, apperrors.New(apperrors.CodeRefundNotAllowed, "payment backs a registration, refund it through a refund request")
	}

	captured := p.CapturedMinor()
	if captured <= 0 {
		return nil, apperrors.New(apperrors.CodeRefundNotAllowed, "payment holds nothing to refund")
	}

	res, err := s.compensator.Compensate(ctx, CompensationRequest{
		PaymentID:   paymentID,
		Amount:      payments.FromMinor(captured),
		Currency:    p.Currency,
		Email:       p.Email,
		Reason:      ReasonUnregisteredPayment,
		Source:      SourceReconciliation,
		ProcessedBy: adminID,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("unregistered payment refunded", "payment_id", paymentID, "admin_id", adminID, "already_refunded", res.AlreadyRefunded)
	return res, nil
}
