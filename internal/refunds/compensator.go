// Package refunds sends money back: automatically when a verified charge
// could not be turned into a registration, and on admin approval otherwise.
package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventreg/internal/payments"
	"eventreg/internal/shared/apperrors"
	"eventreg/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reasons recorded on automatic refunds
const (
	ReasonVerificationFailed = "payment verification failed"
	ReasonRegistrationFailed = "registration failed after verified payment"
	ReasonConversionFailed   = "conversion failed after verified payment"

	ReasonUnregisteredPayment = "payment never became a registration"
)

const maxBackoff = 24 * time.Hour

type CompensationRequest struct {
	PaymentID   string
	Amount      float64
	Currency    string
	Email       string
	Reason      string
	EventID     *uuid.UUID
	UserID      *uuid.UUID
	Source      Source
	ProcessedBy string
}

type Result struct {
	Record          *RefundRecord `json:"record"`
	AlreadyRefunded bool          `json:"already_refunded"`
}

// Notifier tells the payer their money is on its way back.
type Notifier interface {
	RefundIssued(ctx context.Context, record *RefundRecord) error
}

type CompensatorConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
}

type Compensator struct {
	db       *gorm.DB
	gateway  payments.Gateway
	notifier Notifier
	cfg      CompensatorConfig
	now      func() time.Time
	log      *logger.Logger
}

func NewCompensator(db *gorm.DB, gateway payments.Gateway, notifier Notifier, cfg CompensatorConfig, log *logger.Logger) *Compensator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	return &Compensator{
		db:       db,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.WithComponent("compensator"),
	}
}

// Compensate refunds req.PaymentID at most once.
//
// An existing RefundRecord short-circuits without calling the gateway. The
// gateway call is detached from the caller's cancellation and bounded by the
// configured timeout; its outcome is unknown on timeout, so a failure is
// queued for retry under the same idempotency key.
func (c *Compensator) Compensate(ctx context.Context, req CompensationRequest) (*Result, error) {
	if req.PaymentID == "" || req.Amount <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "compensation needs a payment id and a positive amount")
	}
	if req.Source == "" {
		req.Source = SourceCompensation
	}
	if req.ProcessedBy == "" {
		req.ProcessedBy = "system"
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	ctx, span := otel.Tracer("eventreg/refunds").Start(ctx, "refunds.compensate")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", req.PaymentID),
		attribute.Float64("refund.amount", req.Amount),
		attribute.String("refund.source", string(req.Source)),
	)

	existing, err := c.findRecord(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		span.SetAttributes(attribute.Bool("refund.already_refunded", true))
		c.resolveFailure(ctx, req.PaymentID)
		return &Result{Record: existing, AlreadyRefunded: true}, nil
	}

	res, err := c.gateway.Refund(ctx, payments.RefundRequest{
		PaymentID:      req.PaymentID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Reason:         req.Reason,
		IdempotencyKey: payments.IdempotencyKey(req.PaymentID),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway refund failed")
		return nil, c.fail(ctx, req, err)
	}

	record := &RefundRecord{
		PaymentID:         req.PaymentID,
		RefundID:          res.RefundID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Email:             req.Email,
		Reason:            req.Reason,
		RawGatewayPayload: RawJSON(res.Raw),
		RefundDate:        c.now(),
		ProcessedBy:       req.ProcessedBy,
		Source:            req.Source,
		EventID:           req.EventID,
		UserID:            req.UserID,
	}
	if err := c.saveRecord(ctx, record); err != nil {
		span.RecordError(err)
		return nil, c.fail(ctx, req, fmt.Errorf("refund %s issued but not recorded: %w", res.RefundID, err))
	}

	c.resolveFailure(ctx, req.PaymentID)
	c.log.LogCompensation(ctx, req.PaymentID, res.RefundID, req.Amount, req.Reason)

	if c.notifier != nil {
		if err := c.notifier.RefundIssued(ctx, record); err != nil {
			c.log.WithError(err).Warn("refund notification not sent", "payment_id", req.PaymentID)
		}
	}
	return &Result{Record: record}, nil
}

func (c *Compensator) findRecord(ctx context.Context, paymentID string) (*RefundRecord, error) {
	var rec RefundRecord
	err := c.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up refund record: %w", err)
	}
	return &rec, nil
}

// saveRecord upserts on payment_id and reloads the stored row
func (c *Compensator) saveRecord(ctx context.Context, record *RefundRecord) error {
	db := c.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"refund_id", "raw_gateway_payload", "refund_date"}),
	}).Create(record).Error
	if err != nil {
		return err
	}
	return db.Where("payment_id = ?", record.PaymentID).First(record).Error
}

// fail queues the compensation for retry and returns RefundFailed
func (c *Compensator) fail(ctx context.Context, req CompensationRequest, cause error) error {
	attempts, err := c.recordFailure(ctx, req, cause)
	if err != nil {
		c.log.WithError(err).Error("failed to record compensation failure", "payment_id", req.PaymentID)
	}
	c.log.LogCompensationFailed(ctx, req.PaymentID, req.Amount, attempts, cause)
	return apperrors.Wrap(apperrors.CodeRefundFailed, "refund could not be issued", cause)
}

func (c *Compensator) recordFailure(ctx context.Context, req CompensationRequest, cause error) (int, error) {
	now := c.now()
	attempts := 0

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var f CompensationFailure
		err := tx.Where("payment_id = ?", req.PaymentID).First(&f).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			f = CompensationFailure{
				PaymentID: req.PaymentID,
				Amount:    req.Amount,
				Currency:  req.Currency,
				Email:     req.Email,
				Reason:    req.Reason,
				EventID:   req.EventID,
				UserID:    req.UserID,
			}
		case err != nil:
			return err
		}

		f.Attempts++
		attempts = f.Attempts
		f.LastError = cause.Error()
		f.NextAttemptAt = now.Add(c.backoff(f.Attempts))
		f.Status = FailurePending
		if f.Attempts >= c.cfg.MaxAttempts {
			f.Status = FailureAbandoned
		}
		f.ResolvedAt = nil
		return tx.Save(&f).Error
	})
	return attempts, err
}

// backoff doubles from BaseBackoff per attempt, capped at a day
func (c *Compensator) backoff(attempts int) time.Duration {
	d := c.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func (c *Compensator) resolveFailure(ctx context.Context, paymentID string) {
	now := c.now()
	err := c.db.WithContext(ctx).Model(&CompensationFailure{}).
		Where("payment_id = ? AND status <> ?", paymentID, FailureResolved).
		Updates(map[string]interface{}{"status": FailureResolved, "resolved_at": now}).Error
	if err != nil {
		c.log.WithError(err).Warn("failed to resolve compensation failure", "payment_id", paymentID)
	}
}
