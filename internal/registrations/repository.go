package registrations

import (
	"context"
	"errors"
	"fmt"

	"eventreg/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Get(ctx context.Context, eventID, userID uuid.UUID) (*Registration, error)
	Delete(ctx context.Context, eventID, userID uuid.UUID) (*Registration, error)
	PaymentUse(ctx context.Context, paymentID string) (*PaymentUse, error)
	// UsedPayments reports which of paymentIDs ever backed a registration.
	UsedPayments(ctx context.Context, paymentIDs []string) (map[string]bool, error)
}

// PaymentUse says which registration a payment id went to and whether that
// registration still exists.
type PaymentUse struct {
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	UserID         uuid.UUID
	Live           bool
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, eventID, userID uuid.UUID) (*Registration, error) {
	var reg Registration
	err := r.db.WithContext(ctx).Preload("SubEvents").
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	return &reg, nil
}

// Delete removes the registration and its sub-event links in one transaction
func (r *repository) Delete(ctx context.Context, eventID, userID uuid.UUID) (*Registration, error) {
	var reg Registration
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("SubEvents").Where("event_id = ? AND user_id = ?", eventID, userID).First(&reg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrRegistrationNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Where("registration_id = ?", reg.ID).Delete(&RegistrationSubEvent{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", reg.ID).Delete(&Registration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrRegistrationNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *repository) PaymentUse(ctx context.Context, paymentID string) (*PaymentUse, error) {
	return FindPaymentUse(r.db.WithContext(ctx), paymentID)
}

// usedPaymentsChunk keeps IN lists well under driver parameter limits
const usedPaymentsChunk = 500

func (r *repository) UsedPayments(ctx context.Context, paymentIDs []string) (map[string]bool, error) {
	used := make(map[string]bool, len(paymentIDs))
	db := r.db.WithContext(ctx)
	for start := 0; start < len(paymentIDs); start += usedPaymentsChunk {
		chunk := paymentIDs[start:min(start+usedPaymentsChunk, len(paymentIDs))]

		var found []string
		if err := db.Model(&ConsumedPayment{}).Where("payment_id IN ?", chunk).Pluck("payment_id", &found).Error; err != nil {
			return nil, fmt.Errorf("failed to check consumed payments: %w", err)
		}
		var attached []string
		if err := db.Model(&Registration{}).Where("payment_id IN ?", chunk).Pluck("payment_id", &attached).Error; err != nil {
			return nil, fmt.Errorf("failed to check registration payments: %w", err)
		}
		for _, id := range append(found, attached...) {
			used[id] = true
		}
	}
	return used, nil
}

// The helpers below run on the caller's handle so reservations can use them
// inside their own transaction.

// Exists reports whether the user already holds a registration for the event
func Exists(db *gorm.DB, userID, eventID uuid.UUID) (bool, error) {
	var n int64
	err := db.Model(&Registration{}).Where("user_id = ? AND event_id = ?", userID, eventID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check registration: %w", err)
	}
	return n > 0, nil
}

// Insert writes the registration and its sub-event links, and marks a
// payment id as consumed in the same transaction. A second registration for
// the same user and event fails with AlreadyRegistered, a payment that
// already backed one fails with PaymentAlreadyUsed.
func Insert(tx *gorm.DB, reg *Registration) error {
	registered, err := Exists(tx, reg.UserID, reg.EventID)
	if err != nil {
		return err
	}
	if registered {
		return apperrors.ErrAlreadyRegistered
	}

	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	if reg.PaymentID != nil && *reg.PaymentID != "" {
		if err := consume(tx, reg); err != nil {
			return err
		}
	}

	err = tx.Create(reg).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("failed to insert registration: %w", err)
	}
	return nil
}

// consume claims reg's payment id. The primary key on consumed_payments
// settles two registrations racing for one payment.
func consume(tx *gorm.DB, reg *Registration) error {
	paymentID := *reg.PaymentID
	used, err := FindPaymentUse(tx, paymentID)
	if err != nil {
		return err
	}
	if used != nil {
		return apperrors.ErrPaymentAlreadyUsed
	}

	err = tx.Create(&ConsumedPayment{
		PaymentID:      paymentID,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		Amount:         reg.FinalPrice,
		ConsumedAt:     reg.RegisteredAt,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrPaymentAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("failed to record payment use: %w", err)
	}
	return nil
}

// FindPaymentUse returns nil when the payment never backed a registration.
// Registrations written before consumed_payments existed count as well.
func FindPaymentUse(db *gorm.DB, paymentID string) (*PaymentUse, error) {
	if paymentID == "" {
		return nil, nil
	}

	var live Registration
	err := db.Select("id", "event_id", "user_id").Where("payment_id = ?", paymentID).First(&live).Error
	switch {
	case err == nil:
		return &PaymentUse{RegistrationID: live.ID, EventID: live.EventID, UserID: live.UserID, Live: true}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}

	var consumed ConsumedPayment
	err = db.Where("payment_id = ?", paymentID).First(&consumed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	return &PaymentUse{RegistrationID: consumed.RegistrationID, EventID: consumed.EventID, UserID: consumed.UserID}, nil
}
