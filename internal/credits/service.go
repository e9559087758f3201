// Package credits keeps the store credit users can spend on registrations.
package credits

import (
	"context"
	"fmt"
	"math"
	"time"

	"eventreg/internal/shared/apperrors"
	"eventreg/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// tolerance absorbs float noise when comparing balances
const tolerance = 0.005

type Service struct {
	db  *gorm.DB
	now func() time.Time
	log *logger.Logger
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
		log: log.WithComponent("credits"),
	}
}

func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	return balance(s.db.WithContext(ctx), userID)
}

// Deduct spends amount for a registration on eventID. It refuses to take the
// balance below zero.
func (s *Service) Deduct(ctx context.Context, userID uuid.UUID, amount float64, eventID uuid.UUID) error {
	if amount <= 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := balance(tx, userID)
		if err != nil {
			return err
		}
		if current+tolerance < amount {
			return apperrors.ErrInsufficientCredits
		}
		return tx.Create(&CreditTransaction{
			UserID:    userID,
			Amount:    -roundCents(amount),
			Reason:    ReasonRegistration,
			EventID:   &eventID,
			CreatedBy: "system",
			CreatedAt: s.now(),
		}).Error
	})
}

func (s *Service) Grant(ctx context.Context, userID uuid.UUID, req GrantRequest, grantedBy string) (*CreditTransaction, error) {
	if req.Amount <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "amount must be positive")
	}
	reason := req.Reason
	if reason == "" {
		reason = ReasonGrant
	}
	txn := &CreditTransaction{
		UserID:    userID,
		Amount:    roundCents(req.Amount),
		Reason:    reason,
		CreatedBy: grantedBy,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, fmt.Errorf("failed to grant credits: %w", err)
	}
	s.log.Info("credits granted", "user_id", userID, "amount", txn.Amount, "granted_by", grantedBy)
	return txn, nil
}

// Statement returns the balance and the most recent movements.
func (s *Service) Statement(ctx context.Context, userID uuid.UUID, limit int) (*BalanceResponse, error) {
	current, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	var recent []CreditTransaction
	err = s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return &BalanceResponse{UserID: userID, Balance: current, Transactions: recent}, nil
}

func balance(db *gorm.DB, userID uuid.UUID) (float64, error) {
	var sum float64
	err := db.Model(&CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum credits: %w", err)
	}
	return roundCents(sum), nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
