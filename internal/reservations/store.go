// Package reservations holds seats while a user pays.
package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventreg/internal/capacity"
	"eventreg/internal/checkout"
	"eventreg/internal/events"
	"eventreg/internal/registrations"
	"eventreg/internal/shared/apperrors"
	"eventreg/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReserveInput struct {
	UserID       uuid.UUID
	EventID      uuid.UUID
	TierID       *uuid.UUID
	SubEventIDs  []uuid.UUID
	CreditsUsed  float64
	FinalPrice   *float64
	PaymentEmail string
	Audience     string
}

// CreditBalance lets Reserve refuse credits the user does not have.
type CreditBalance interface {
	Balance(ctx context.Context, userID uuid.UUID) (float64, error)
}

type Store struct {
	db           *gorm.DB
	validator    *checkout.Validator
	ledger       *capacity.Ledger
	credits      CreditBalance
	availability registrations.AvailabilityCache
	ttl          time.Duration
	log          *logger.Logger
}

type StoreOption func(*Store)

func WithCredits(c CreditBalance) StoreOption {
	return func(s *Store) { s.credits = c }
}

// WithAvailability drops cached availability whenever a hold is taken or released
func WithAvailability(a registrations.AvailabilityCache) StoreOption {
	return func(s *Store) { s.availability = a }
}

func NewStore(db *gorm.DB, validator *checkout.Validator, ledger *capacity.Ledger, ttl time.Duration, log *logger.Logger, opts ...StoreOption) *Store {
	s := &Store{
		db:        db,
		validator: validator,
		ledger:    ledger,
		ttl:       ttl,
		log:       log.WithComponent("reservations"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) invalidate(ctx context.Context, eventID uuid.UUID) {
	if s.availability != nil {
		s.availability.Invalidate(ctx, eventID)
	}
}

// Reserve holds one seat on every scope the selection touches. The whole
// decision runs under the event row lock, so two users can never both take
// the last seat.
func (s *Store) Reserve(ctx context.Context, in ReserveInput) (*Reservation, error) {
	if in.CreditsUsed < 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "credits_used must not be negative")
	}
	if in.CreditsUsed > 0 && s.credits != nil {
		balance, err := s.credits.Balance(ctx, in.UserID)
		if err != nil {
			return nil, err
		}
		if balance+0.005 < in.CreditsUsed {
			return nil, apperrors.ErrInsufficientCredits
		}
	}

	var res *Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := events.LockForUpdate(tx, in.EventID)
		if err != nil {
			return err
		}

		registered, err := registrations.Exists(tx, in.UserID, in.EventID)
		if err != nil {
			return err
		}
		if registered {
			return apperrors.ErrAlreadyRegistered
		}

		now := s.ledger.Now()

		// One live hold per user and event.
		err = tx.Model(&Reservation{}).
			Where("user_id = ? AND event_id = ? AND state = ?", in.UserID, in.EventID, StateHeld).
			Updates(map[string]interface{}{"state": StateCancelled, "closed_at": now}).Error
		if err != nil {
			return fmt.Errorf("failed to release previous hold: %w", err)
		}

		sel, err := s.validator.Resolve(ctx, tx, event, checkout.Request{
			TierID:      in.TierID,
			SubEventIDs: in.SubEventIDs,
			Audience:    in.Audience,
		})
		if err != nil {
			return err
		}
		if err := s.validator.Require(ctx, tx, sel); err != nil {
			return err
		}

		res = &Reservation{
			UserID:       in.UserID,
			EventID:      in.EventID,
			TierID:       sel.TierID(),
			CreditsUsed:  in.CreditsUsed,
			QuotedPrice:  checkout.Quote(sel, in.CreditsUsed, in.FinalPrice),
			PaymentEmail: in.PaymentEmail,
			State:        StateHeld,
			CreatedAt:    now,
			ExpiresAt:    now.Add(s.ttl),
		}
		for _, id := range sel.SubEventIDs() {
			res.SubEvents = append(res.SubEvents, ReservationSubEvent{SubEventID: id})
		}
		if err := tx.Create(res).Error; err != nil {
			return fmt.Errorf("failed to insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.LogReservationHeld(ctx, res.ID.String(), res.EventID.String(), res.UserID.String(), res.ExpiresAt)
	s.invalidate(ctx, res.EventID)
	return res, nil
}

// Convert flips a live hold to CONVERTED and writes the registration in the
// same transaction. Missing, foreign, closed and expired holds all answer
// ReservationNotFound.
func (s *Store) Convert(ctx context.Context, reservationID, userID uuid.UUID, payment registrations.Payment) (*registrations.Registration, error) {
	var reg *registrations.Registration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res Reservation
		err := tx.Preload("SubEvents").Where("id = ? AND user_id = ?", reservationID, userID).First(&res).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrReservationNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load reservation: %w", err)
		}

		if _, err := events.LockForUpdate(tx, res.EventID); err != nil {
			return err
		}

		now := s.ledger.Now()
		flip := tx.Model(&Reservation{}).
			Where("id = ? AND user_id = ? AND state = ? AND expires_at > ?", reservationID, userID, StateHeld, now).
			Updates(map[string]interface{}{"state": StateConverted, "closed_at": now})
		if flip.Error != nil {
			return fmt.Errorf("failed to convert reservation: %w", flip.Error)
		}
		if flip.RowsAffected == 0 {
			return apperrors.ErrReservationNotFound
		}

		email := payment.Email
		if email == "" {
			email = res.PaymentEmail
		}
		resID := res.ID
		reg = &registrations.Registration{
			UserID:        res.UserID,
			EventID:       res.EventID,
			TierID:        res.TierID,
			ReservationID: &resID,
			FinalPrice:    res.QuotedPrice,
			CreditsUsed:   res.CreditsUsed,
			PaymentStatus: registrations.PaymentStatusCompleted,
			PaymentEmail:  email,
			RegisteredAt:  now,
			SubEvents:     registrations.Links(res.SubEventIDs()),
		}
		if payment.ID != "" {
			pid := payment.ID
			reg.PaymentID = &pid
		}
		return registrations.Insert(tx, reg)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Cancel releases a live hold on eventID. Unknown, foreign, closed and
// expired holds, and holds on another event, report false without error.
func (s *Store) Cancel(ctx context.Context, eventID, reservationID, userID uuid.UUID) (bool, error) {
	now := s.ledger.Now()
	res := s.db.WithContext(ctx).Model(&Reservation{}).
		Where("id = ? AND user_id = ? AND event_id = ? AND state = ? AND expires_at > ?", reservationID, userID, eventID, StateHeld, now).
		Updates(map[string]interface{}{"state": StateCancelled, "closed_at": now})
	if res.Error != nil {
		return false, fmt.Errorf("failed to cancel reservation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.log.LogReservationReleased(ctx, reservationID.String(), userID.String())
	s.invalidate(ctx, eventID)
	return true, nil
}

// Get returns the reservation in any state, scoped to its event. A HELD row
// past its expiry is reported as EXPIRED whether or not the reaper has run.
func (s *Store) Get(ctx context.Context, eventID, reservationID, userID uuid.UUID) (*Reservation, error) {
	return s.load(ctx, "id = ? AND user_id = ? AND event_id = ?", reservationID, userID, eventID)
}

func (s *Store) load(ctx context.Context, query string, args ...interface{}) (*Reservation, error) {
	var res Reservation
	err := s.db.WithContext(ctx).Preload("SubEvents").Where(query, args...).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	if res.State == StateHeld && !res.ExpiresAt.After(s.ledger.Now()) {
		res.State = StateExpired
	}
	return &res, nil
}

// Lookup gives conversion the quoted price of a reservation in any state.
// The caller checks the event.
func (s *Store) Lookup(ctx context.Context, reservationID, userID uuid.UUID) (*registrations.HeldReservation, error) {
	res, err := s.load(ctx, "id = ? AND user_id = ?", reservationID, userID)
	if err != nil {
		return nil, err
	}
	return &registrations.HeldReservation{
		ID:           res.ID,
		EventID:      res.EventID,
		QuotedPrice:  res.QuotedPrice,
		CreditsUsed:  res.CreditsUsed,
		PaymentEmail: res.PaymentEmail,
	}, nil
}

// PurgeExpired marks stale holds EXPIRED and deletes up to batch rows that
// have been closed for longer than retention.
func (s *Store) PurgeExpired(ctx context.Context, retention time.Duration, batch int) (expired, purged int64, err error) {
	now := s.ledger.Now()
	db := s.db.WithContext(ctx)

	res := db.Model(&Reservation{}).
		Where("state = ? AND expires_at <= ?", StateHeld, now).
		Updates(map[string]interface{}{"state": StateExpired, "closed_at": now})
	if res.Error != nil {
		return 0, 0, fmt.Errorf("failed to expire holds: %w", res.Error)
	}
	expired = res.RowsAffected

	err = db.Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		err := tx.Model(&Reservation{}).
			Where("state <> ? AND closed_at < ?", StateHeld, now.Add(-retention)).
			Order("closed_at ASC").
			Limit(batch).
			Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}
		if err := tx.Where("reservation_id IN ?", ids).Delete(&ReservationSubEvent{}).Error; err != nil {
			return err
		}
		del := tx.Where("id IN ?", ids).Delete(&Reservation{})
		purged = del.RowsAffected
		return del.Error
	})
	if err != nil {
		return expired, 0, fmt.Errorf("failed to purge closed holds: %w", err)
	}
	return expired, purged, nil
}
