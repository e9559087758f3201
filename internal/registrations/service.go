package registrations

import (
	"context"
	"errors"
	"math"

	"eventreg/internal/checkout"
	"eventreg/internal/events"
	"eventreg/internal/payments"
	"eventreg/internal/refunds"
	"eventreg/internal/shared/apperrors"
	"eventreg/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type Service interface {
	// Register writes a registration against live capacity
	Register(ctx context.Context, in RegisterInput) (*Registration, error)
	// Convert turns a held reservation into a registration
	Convert(ctx context.Context, in ConvertInput) (*Registration, error)
	Cancel(ctx context.Context, eventID, userID uuid.UUID) error
	Get(ctx context.Context, eventID, userID uuid.UUID) (*Registration, error)
}

// Deps are the collaborators of the registration flow. Credits, Notifier and
// Availability are optional.
type Deps struct {
	DB           *gorm.DB
	Repo         Repository
	Validator    *checkout.Validator
	Reservations ReservationStore
	Gateway      PaymentVerifier
	Compensator  Compensator
	Credits      Credits
	Notifier     Notifier
	Availability AvailabilityCache
	Currency     string
	Log          *logger.Logger
}

type service struct {
	Deps
	tracer trace.Tracer
	log    *logger.Logger
}

func NewService(deps Deps) Service {
	return &service{
		Deps:   deps,
		tracer: otel.Tracer("eventreg/registrations"),
		log:    deps.Log.WithComponent("registrations"),
	}
}

// charge identifies money that may have to go back
type charge struct {
	paymentID string
	amount    float64
	currency  string
	email     string
	eventID   uuid.UUID
	userID    uuid.UUID
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registrations.register", trace.WithAttributes(
		attribute.String("event.id", in.EventID.String()),
		attribute.String("user.id", in.UserID.String()),
	))
	defer span.End()

	if in.CreditsUsed < 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "credits_used must not be negative")
	}

	event, err := events.Find(s.DB.WithContext(ctx), in.EventID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCredits(ctx, in.UserID, in.CreditsUsed); err != nil {
		return nil, err
	}

	req := checkout.Request{TierID: in.TierID, SubEventIDs: in.SubEventIDs, Audience: in.Audience}

	// Selection errors surface before any payment is looked at.
	preview, err := s.Validator.Resolve(ctx, s.DB.WithContext(ctx), event, req)
	if err != nil {
		return nil, err
	}
	price := s.quote(ctx, preview, in.CreditsUsed, in.FinalPrice)
	span.SetAttributes(attribute.Float64("registration.price", price))

	ch := charge{
		paymentID: in.PaymentID,
		amount:    price,
		currency:  s.currencyOf(event),
		email:     in.PaymentEmail,
		eventID:   event.ID,
		userID:    in.UserID,
	}
	if err := s.claimable(ctx, ch); err != nil {
		return nil, err
	}
	if err := s.verifyPayment(ctx, &ch); err != nil {
		return nil, err
	}

	var reg *Registration
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := events.LockForUpdate(tx, event.ID)
		if err != nil {
			return err
		}
		sel, err := s.Validator.Resolve(ctx, tx, locked, req)
		if err != nil {
			return err
		}
		if err := s.Validator.Require(ctx, tx, sel); err != nil {
			return err
		}

		reg = &Registration{
			UserID:        in.UserID,
			EventID:       event.ID,
			TierID:        sel.TierID(),
			FinalPrice:    price,
			CreditsUsed:   in.CreditsUsed,
			PaymentID:     optional(in.PaymentID),
			PaymentStatus: PaymentStatusCompleted,
			PaymentEmail:  in.PaymentEmail,
			RegisteredAt:  s.Validator.Now(),
			SubEvents:     Links(sel.SubEventIDs()),
		}
		return Insert(tx, reg)
	})
	if err != nil {
		span.RecordError(err)
		s.compensate(ctx, ch, refunds.ReasonRegistrationFailed)
		return nil, err
	}

	s.completed(ctx, reg, event)
	return reg, nil
}

func (s *service) Convert(ctx context.Context, in ConvertInput) (*Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registrations.convert", trace.WithAttributes(
		attribute.String("reservation.id", in.ReservationID.String()),
		attribute.String("user.id", in.UserID.String()),
	))
	defer span.End()

	ch := charge{paymentID: in.PaymentID, email: in.PaymentEmail, eventID: in.EventID, userID: in.UserID}

	held, err := s.Reservations.Lookup(ctx, in.ReservationID, in.UserID)
	switch {
	case err == nil:
		if held.EventID != in.EventID {
			return nil, apperrors.ErrReservationNotFound
		}
		ch.amount = held.QuotedPrice
		if ch.email == "" {
			ch.email = held.PaymentEmail
		}
	case in.FinalPrice != nil:
		ch.amount = *in.FinalPrice
	}

	event, err := events.Find(s.DB.WithContext(ctx), in.EventID)
	if err == nil {
		ch.currency = s.currencyOf(event)
	} else {
		ch.currency = s.Currency
	}

	if err := s.claimable(ctx, ch); err != nil {
		return nil, err
	}
	if err := s.verifyPayment(ctx, &ch); err != nil {
		return nil, err
	}

	reg, err := s.Reservations.Convert(ctx, in.ReservationID, in.UserID, Payment{ID: in.PaymentID, Email: ch.email})
	if err != nil {
		span.RecordError(err)
		s.compensate(ctx, ch, refunds.ReasonConversionFailed)
		return nil, err
	}

	s.completed(ctx, reg, event)
	return reg, nil
}

func (s *service) Cancel(ctx context.Context, eventID, userID uuid.UUID) error {
	if _, err := s.Repo.Delete(ctx, eventID, userID); err != nil {
		return err
	}
	s.log.LogRegistrationCancelled(ctx, eventID.String(), userID.String())
	if s.Availability != nil {
		s.Availability.Invalidate(ctx, eventID)
	}
	return nil
}

func (s *service) Get(ctx context.Context, eventID, userID uuid.UUID) (*Registration, error) {
	return s.Repo.Get(ctx, eventID, userID)
}

// quote prices the selection. A supplied price is honoured, but a mismatch
// with the list price is logged for review.
func (s *service) quote(ctx context.Context, sel *checkout.Selection, credits float64, supplied *float64) float64 {
	price := checkout.Quote(sel, credits, supplied)
	if supplied != nil {
		listed := checkout.Quote(sel, credits, nil)
		if math.Abs(listed-price) >= 0.01 {
			s.log.WarnWithContext(ctx, "supplied price differs from list price", map[string]interface{}{
				"event_id":       sel.Event.ID.String(),
				"supplied_price": price,
				"list_price":     listed,
			})
		}
	}
	return price
}

func (s *service) checkCredits(ctx context.Context, userID uuid.UUID, amount float64) error {
	if amount <= 0 || s.Credits == nil {
		return nil
	}
	balance, err := s.Credits.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance+0.005 < amount {
		return apperrors.ErrInsufficientCredits
	}
	return nil
}

// claimable refuses a payment id that already paid for a registration,
// before the gateway is asked about it. Replaying the payment of a
// registration that still exists for the same user and event passes, so the
// flow answers the duplicate itself.
func (s *service) claimable(ctx context.Context, ch charge) error {
	if ch.paymentID == "" {
		return nil
	}
	used, err := s.Repo.PaymentUse(ctx, ch.paymentID)
	if err != nil {
		return err
	}
	if used == nil {
		return nil
	}
	if used.Live && used.UserID == ch.userID && used.EventID == ch.eventID {
		return nil
	}
	s.log.Warn("payment already consumed", "payment_id", ch.paymentID, "registration_id", used.RegistrationID, "event_id", ch.eventID)
	return apperrors.ErrPaymentAlreadyUsed
}

// verifyPayment requires a confirmed charge for any positive amount. It
// leaves ch.amount at what the gateway actually captured, so a later
// compensation sends back exactly that. A failed verification refunds the
// captured amount, and nothing when nothing was captured.
func (s *service) verifyPayment(ctx context.Context, ch *charge) error {
	if ch.amount <= 0 {
		return nil
	}
	if ch.paymentID == "" {
		return apperrors.ErrPaymentRequired
	}

	v, err := s.Gateway.Verify(ctx, ch.paymentID, ch.amount)
	switch {
	case err == nil && v.OK:
		ch.amount = v.Captured()
		return nil
	case err == nil:
		ch.amount = v.Captured()
	case errors.Is(err, payments.ErrPaymentNotFound):
		ch.amount = 0
	default:
		// Capture unknown. The expected amount is asked for and a rejection is queued.
		s.log.WithError(err).Warn("payment verification errored", "payment_id", ch.paymentID)
	}

	if ch.amount > 0 {
		s.compensate(ctx, *ch, refunds.ReasonVerificationFailed)
	} else {
		s.log.Info("payment captured nothing, no refund", "payment_id", ch.paymentID)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodePaymentVerificationFailed, apperrors.ErrPaymentVerificationFailed.Message, err)
	}
	return apperrors.ErrPaymentVerificationFailed
}

// compensate refunds a charge that did not become a registration. A payment
// that ever backed a registration is never refunded here. Its own failure is
// queued by the compensator and never replaces the caller's error.
func (s *service) compensate(ctx context.Context, ch charge, reason string) {
	if ch.paymentID == "" || ch.amount <= 0 {
		return
	}

	used, err := s.Repo.PaymentUse(ctx, ch.paymentID)
	if err != nil {
		s.log.WithError(err).Warn("could not check payment usage before refunding", "payment_id", ch.paymentID)
	}
	if used != nil {
		s.log.Info("payment already backs a registration, not refunding", "payment_id", ch.paymentID, "registration_id", used.RegistrationID)
		return
	}

	eventID, userID := ch.eventID, ch.userID
	_, err = s.Compensator.Compensate(ctx, refunds.CompensationRequest{
		PaymentID: ch.paymentID,
		Amount:    ch.amount,
		Currency:  ch.currency,
		Email:     ch.email,
		Reason:    reason,
		EventID:   &eventID,
		UserID:    &userID,
		Source:    refunds.SourceCompensation,
	})
	if err != nil && !errors.Is(err, apperrors.ErrRefundFailed) {
		s.log.WithError(err).Error("compensation could not start", "payment_id", ch.paymentID)
	}
}

func (s *service) completed(ctx context.Context, reg *Registration, event *events.Event) {
	s.log.LogRegistrationCreated(ctx, reg.ID.String(), reg.EventID.String(), reg.UserID.String(), reg.FinalPrice)

	if reg.CreditsUsed > 0 && s.Credits != nil {
		if err := s.Credits.Deduct(ctx, reg.UserID, reg.CreditsUsed, reg.EventID); err != nil {
			s.log.WithError(err).Error("credits not deducted for registration", "registration_id", reg.ID, "credits", reg.CreditsUsed)
		}
	}
	if s.Notifier != nil && event != nil {
		if err := s.Notifier.RegistrationConfirmed(ctx, reg, event); err != nil {
			s.log.WithError(err).Warn("registration notification not sent", "registration_id", reg.ID)
		}
	}
	if s.Availability != nil {
		s.Availability.Invalidate(ctx, reg.EventID)
	}
}

func (s *service) currencyOf(event *events.Event) string {
	if event != nil && event.Currency != "" {
		return event.Currency
	}
	return s.Currency
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
