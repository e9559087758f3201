package registrations

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventreg/internal/capacity"
	"eventreg/internal/checkout"
	"eventreg/internal/events"
	"eventreg/internal/payments"
	"eventreg/internal/refunds"
	"eventreg/internal/shared/apperrors"
	"eventreg/internal/shared/database/testdb"
	"eventreg/internal/tiers"
	"eventreg/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

// Holds are counted by the ledger, so the table must exist.
type reservationRow struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventID   uuid.UUID  `gorm:"type:uuid"`
	TierID    *uuid.UUID `gorm:"type:uuid"`
	State     string
	ExpiresAt time.Time
}

func (reservationRow) TableName() string { return capacity.TableReservations }

type reservationSubEventRow struct {
	ReservationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubEventID    uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (reservationSubEventRow) TableName() string { return capacity.TableReservationSubEvents }

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(ctx context.Context, paymentID string, expected float64) (*payments.Verification, error) {
	args := m.Called(ctx, paymentID, expected)
	v, _ := args.Get(0).(*payments.Verification)
	return v, args.Error(1)
}

func verified(amount float64) *payments.Verification {
	return &payments.Verification{OK: true, Status: payments.StatusCompleted, CapturedMinor: payments.ToMinor(amount), Currency: "USD"}
}

func declined(status string, captured float64) *payments.Verification {
	v := &payments.Verification{Status: status, Currency: "USD"}
	if status == payments.StatusCompleted {
		v.CapturedMinor = payments.ToMinor(captured)
	}
	return v
}

type mockCompensator struct{ mock.Mock }

func (m *mockCompensator) Compensate(ctx context.Context, req refunds.CompensationRequest) (*refunds.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*refunds.Result)
	return res, args.Error(1)
}

type fakeCredits struct {
	balance  float64
	deducted []float64
}

func (c *fakeCredits) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	return c.balance, nil
}

func (c *fakeCredits) Deduct(ctx context.Context, userID uuid.UUID, amount float64, eventID uuid.UUID) error {
	c.deducted = append(c.deducted, amount)
	c.balance -= amount
	return nil
}

type fakeReservations struct {
	held       *HeldReservation
	lookupErr  error
	convertErr error
	converted  []Payment
}

func (f *fakeReservations) Lookup(ctx context.Context, reservationID, userID uuid.UUID) (*HeldReservation, error) {
	return f.held, f.lookupErr
}

func (f *fakeReservations) Convert(ctx context.Context, reservationID, userID uuid.UUID, payment Payment) (*Registration, error) {
	f.converted = append(f.converted, payment)
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	return &Registration{ID: uuid.New(), UserID: userID, EventID: f.held.EventID, FinalPrice: f.held.QuotedPrice}, nil
}

type serviceFixture struct {
	db           *gorm.DB
	verifier     *mockVerifier
	compensator  *mockCompensator
	credits      *fakeCredits
	reservations *fakeReservations
	svc          Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := testdb.Open(t,
		&events.Event{}, &events.TicketTier{}, &events.SubEvent{},
		&Registration{}, &RegistrationSubEvent{}, &ConsumedPayment{}, &reservationRow{}, &reservationSubEventRow{},
	)
	ledger := capacity.NewLedger(capacity.WithClock(func() time.Time { return testNow }))
	f := &serviceFixture{
		db:           db,
		verifier:     &mockVerifier{},
		compensator:  &mockCompensator{},
		credits:      &fakeCredits{},
		reservations: &fakeReservations{},
	}
	f.svc = NewService(Deps{
		DB:           db,
		Repo:         NewRepository(db),
		Validator:    checkout.NewValidator(tiers.NewResolver(db, ledger), ledger),
		Reservations: f.reservations,
		Gateway:      f.verifier,
		Compensator:  f.compensator,
		Credits:      f.credits,
		Currency:     "CAD",
		Log:          logger.Discard(),
	})
	return f
}

func (f *serviceFixture) event(t *testing.T, capacity int, fee float64) *events.Event {
	t.Helper()
	e := &events.Event{Name: "Gala", StartsAt: testNow.AddDate(0, 1, 0), Capacity: capacity, Fee: fee, Currency: "USD"}
	require.NoError(t, f.db.Create(e).Error)
	return e
}

func (f *serviceFixture) expectRefund(paymentID string, amount float64, reason string) {
	f.compensator.On("Compensate", mock.Anything, mock.MatchedBy(func(req refunds.CompensationRequest) bool {
		return req.PaymentID == paymentID && req.Amount == amount && req.Reason == reason
	})).Return(&refunds.Result{}, nil).Once()
}

func TestRegisterFreeEvent(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 0)
	user := uuid.New()
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, RegisterInput{UserID: user, EventID: e.ID})
	require.NoError(t, err)
	assert.Zero(t, reg.FinalPrice)
	assert.Equal(t, PaymentStatusCompleted, reg.PaymentStatus)
	assert.Equal(t, testNow, reg.RegisteredAt)

	got, err := f.svc.Get(ctx, e.ID, user)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)

	require.NoError(t, f.svc.Cancel(ctx, e.ID, user))
	assert.True(t, errors.Is(f.svc.Cancel(ctx, e.ID, user), apperrors.ErrRegistrationNotFound))
	_, err = f.svc.Get(ctx, e.ID, user)
	assert.True(t, errors.Is(err, apperrors.ErrRegistrationNotFound))

	f.verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterPaidEventNeedsPayment(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)

	_, err := f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: e.ID})
	assert.True(t, errors.Is(err, apperrors.ErrPaymentRequired))
	f.compensator.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything)
}

func TestUnverifiedPaymentRefundsWhatWasCaptured(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)
	user := uuid.New()

	f.verifier.On("Verify", mock.Anything, "p1", 40.0).Return(declined(payments.StatusCompleted, 55), nil).Once()
	f.expectRefund("p1", 55, refunds.ReasonVerificationFailed)

	_, err := f.svc.Register(context.Background(), RegisterInput{UserID: user, EventID: e.ID, PaymentID: "p1", PaymentEmail: "a@example.com"})
	assert.True(t, errors.Is(err, apperrors.ErrPaymentVerificationFailed))

	f.verifier.AssertExpectations(t)
	f.compensator.AssertExpectations(t)
	req := f.compensator.Calls[0].Arguments.Get(1).(refunds.CompensationRequest)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, "a@example.com", req.Email)
	assert.Equal(t, e.ID, *req.EventID)
	assert.Equal(t, user, *req.UserID)

	exists, err := Exists(f.db, user, e.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGatewayErrorDuringVerificationIsRefunded(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)

	f.verifier.On("Verify", mock.Anything, "p1", 40.0).Return(nil, errors.New("gateway unreachable")).Once()
	f.expectRefund("p1", 40, refunds.ReasonVerificationFailed)

	_, err := f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: e.ID, PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrPaymentVerificationFailed))
	f.compensator.AssertExpectations(t)
}

func TestUnderpaidPaymentRefundsOnlyTheCapture(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 25)

	f.verifier.On("Verify", mock.Anything, "p-short", 25.0).Return(declined(payments.StatusCompleted, 5), nil).Once()
	f.expectRefund("p-short", 5, refunds.ReasonVerificationFailed)

	_, err := f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: e.ID, PaymentID: "p-short"})
	assert.True(t, errors.Is(err, apperrors.ErrPaymentVerificationFailed))
	f.compensator.AssertExpectations(t)
}

func TestNothingCapturedMeansNoRefund(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    *payments.Verification
		err  error
	}{
		{name: "failed payment", v: declined("FAILED", 0)},
		{name: "authorised only", v: declined("APPROVED", 40)},
		{name: "unknown payment", err: payments.ErrPaymentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newServiceFixture(t)
			e := f.event(t, 10, 40)

			f.verifier.On("Verify", mock.Anything, "p1", 40.0).Return(tt.v, tt.err).Once()

			_, err := f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: e.ID, PaymentID: "p1"})
			assert.True(t, errors.Is(err, apperrors.ErrPaymentVerificationFailed))
			f.compensator.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentCannotBackTwoRegistrations(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	first, second := f.event(t, 10, 25), f.event(t, 10, 25)
	alice, bob := uuid.New(), uuid.New()
	ctx := context.Background()

	f.verifier.On("Verify", mock.Anything, "p1", 25.0).Return(verified(25), nil).Once()
	_, err := f.svc.Register(ctx, RegisterInput{UserID: alice, EventID: first.ID, PaymentID: "p1"})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, RegisterInput{UserID: bob, EventID: second.ID, PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrPaymentAlreadyUsed))
	assert.Equal(t, 409, apperrors.HTTPStatus(err))

	_, err = f.svc.Register(ctx, RegisterInput{UserID: alice, EventID: second.ID, PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrPaymentAlreadyUsed))

	var backed int64
	require.NoError(t, f.db.Model(&Registration{}).Where("payment_id = ?", "p1").Count(&backed).Error)
	assert.Equal(t, int64(1), backed)
	f.verifier.AssertExpectations(t)
	f.compensator.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything)
}

func TestCancelledRegistrationKeepsItsPaymentConsumed(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	cheap, dear := f.event(t, 10, 10), f.event(t, 10, 30)
	alice := uuid.New()
	ctx := context.Background()

	f.verifier.On("Verify", mock.Anything, "p1", 10.0).Return(verified(10), nil).Once()
	reg, err := f.svc.Register(ctx, RegisterInput{UserID: alice, EventID: cheap.ID, PaymentID: "p1"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, cheap.ID, alice))

	// Replaying the payment elsewhere must neither register nor auto-refund.
	_, err = f.svc.Register(ctx, RegisterInput{UserID: alice, EventID: dear.ID, PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrPaymentAlreadyUsed))

	_, err = f.svc.Register(ctx, RegisterInput{UserID: alice, EventID: cheap.ID, PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrPaymentAlreadyUsed))

	var consumed ConsumedPayment
	require.NoError(t, f.db.Where("payment_id = ?", "p1").First(&consumed).Error)
	assert.Equal(t, reg.ID, consumed.RegistrationID)
	assert.Equal(t, cheap.ID, consumed.EventID)
	assert.Equal(t, 10.0, consumed.Amount)

	f.verifier.AssertExpectations(t)
	f.compensator.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything)
}

func TestInsertRefusesAConsumedPayment(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 10)

	require.NoError(t, f.db.Create(&ConsumedPayment{PaymentID: "p1", RegistrationID: uuid.New(), EventID: uuid.New(), UserID: uuid.New(), ConsumedAt: testNow}).Error)

	pid := "p1"
	err := Insert(f.db, &Registration{UserID: uuid.New(), EventID: e.ID, PaymentID: &pid, PaymentStatus: PaymentStatusCompleted, RegisteredAt: testNow})
	assert.True(t, errors.Is(err, apperrors.ErrPaymentAlreadyUsed))

	var n int64
	require.NoError(t, f.db.Model(&Registration{}).Where("event_id = ?", e.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSeatLostAfterPaymentIsRefunded(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 1, 40)
	ctx := context.Background()

	require.NoError(t, Insert(f.db, &Registration{UserID: uuid.New(), EventID: e.ID, PaymentStatus: PaymentStatusCompleted, RegisteredAt: testNow}))

	f.verifier.On("Verify", mock.Anything, "p2", 40.0).Return(verified(40), nil).Once()
	f.expectRefund("p2", 40, refunds.ReasonRegistrationFailed)

	_, err := f.svc.Register(ctx, RegisterInput{UserID: uuid.New(), EventID: e.ID, PaymentID: "p2"})
	assert.True(t, errors.Is(err, apperrors.ErrCapacityExceeded))
	f.compensator.AssertExpectations(t)
}

func TestDuplicateRegistrationRefundsTheNewPaymentOnly(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)
	user := uuid.New()
	ctx := context.Background()

	f.verifier.On("Verify", mock.Anything, mock.Anything, 40.0).Return(verified(40), nil)

	_, err := f.svc.Register(ctx, RegisterInput{UserID: user, EventID: e.ID, PaymentID: "p1"})
	require.NoError(t, err)

	// Same payment replayed: it backs the first registration and must not be refunded.
	_, err = f.svc.Register(ctx, RegisterInput{UserID: user, EventID: e.ID, PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyRegistered))
	f.compensator.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything)

	f.expectRefund("p2", 40, refunds.ReasonRegistrationFailed)
	_, err = f.svc.Register(ctx, RegisterInput{UserID: user, EventID: e.ID, PaymentID: "p2"})
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyRegistered))
	f.compensator.AssertExpectations(t)
}

func TestSelectionErrorsSurfaceBeforePayment(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)
	tier := uuid.New()

	_, err := f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: e.ID, TierID: &tier, PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTierOrSubEvent))

	_, err = f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: uuid.New(), PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrEventNotFound))

	f.verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
	f.compensator.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything)
}

func TestCreditsReduceThePriceAndAreDeducted(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)
	f.credits.balance = 15

	_, err := f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: e.ID, CreditsUsed: 20, PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientCredits))

	f.verifier.On("Verify", mock.Anything, "p1", 30.0).Return(verified(30), nil).Once()
	reg, err := f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: e.ID, CreditsUsed: 10, PaymentID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, reg.FinalPrice)
	assert.Equal(t, []float64{10}, f.credits.deducted)
}

func TestCreditsCoveringThePriceNeedNoPayment(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)
	f.credits.balance = 50

	reg, err := f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: e.ID, CreditsUsed: 45})
	require.NoError(t, err)
	assert.Zero(t, reg.FinalPrice)
	assert.Nil(t, reg.PaymentID)
}

func TestSuppliedPriceIsTrusted(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)
	price := 22.5

	f.verifier.On("Verify", mock.Anything, "p1", 22.5).Return(verified(22.5), nil).Once()
	reg, err := f.svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), EventID: e.ID, FinalPrice: &price, PaymentID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 22.5, reg.FinalPrice)
}

func TestConvertRefundsWhenTheHoldIsGone(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)
	user := uuid.New()

	f.reservations.held = &HeldReservation{ID: uuid.New(), EventID: e.ID, QuotedPrice: 40, PaymentEmail: "held@example.com"}
	f.reservations.convertErr = apperrors.ErrReservationNotFound

	f.verifier.On("Verify", mock.Anything, "p1", 40.0).Return(verified(40), nil).Once()
	f.expectRefund("p1", 40, refunds.ReasonConversionFailed)

	_, err := f.svc.Convert(context.Background(), ConvertInput{ReservationID: f.reservations.held.ID, UserID: user, EventID: e.ID, PaymentID: "p1"})
	assert.True(t, errors.Is(err, apperrors.ErrReservationNotFound))
	f.compensator.AssertExpectations(t)
	require.Len(t, f.reservations.converted, 1)
	assert.Equal(t, "held@example.com", f.reservations.converted[0].Email)
}

func TestConvertFallsBackToTheSuppliedPrice(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)
	price := 18.0

	f.reservations.lookupErr = apperrors.ErrReservationNotFound
	f.reservations.convertErr = apperrors.ErrReservationNotFound

	f.verifier.On("Verify", mock.Anything, "p9", 18.0).Return(verified(18), nil).Once()
	f.expectRefund("p9", 18, refunds.ReasonConversionFailed)

	_, err := f.svc.Convert(context.Background(), ConvertInput{ReservationID: uuid.New(), UserID: uuid.New(), EventID: e.ID, PaymentID: "p9", FinalPrice: &price})
	assert.True(t, errors.Is(err, apperrors.ErrReservationNotFound))
	f.compensator.AssertExpectations(t)
}

func TestRefundLookup(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	e := f.event(t, 10, 40)
	user := uuid.New()
	ctx := context.Background()

	f.verifier.On("Verify", mock.Anything, "p1", 40.0).Return(verified(40), nil).Once()
	_, err := f.svc.Register(ctx, RegisterInput{UserID: user, EventID: e.ID, PaymentID: "p1", PaymentEmail: "u@example.com"})
	require.NoError(t, err)

	lookup := NewRefundLookup(NewRepository(f.db), f.svc)
	paid, err := lookup.Lookup(ctx, e.ID, user)
	require.NoError(t, err)
	assert.Equal(t, "p1", paid.PaymentID)
	assert.Equal(t, 40.0, paid.Amount)
	assert.Equal(t, "u@example.com", paid.Email)

	require.NoError(t, lookup.Cancel(ctx, e.ID, user))
	_, err = lookup.Lookup(ctx, e.ID, user)
	assert.True(t, errors.Is(err, apperrors.ErrRegistrationNotFound))
}
