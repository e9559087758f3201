package refunds

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventreg/internal/payments"
	"eventreg/internal/shared/apperrors"
	"eventreg/internal/shared/database/testdb"
	"eventreg/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Verify(ctx context.Context, paymentID string, expected float64) (*payments.Verification, error) {
	args := m.Called(ctx, paymentID, expected)
	v, _ := args.Get(0).(*payments.Verification)
	return v, args.Error(1)
}

func (m *mockGateway) GetPayment(ctx context.Context, paymentID string) (*payments.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(*payments.Payment)
	return p, args.Error(1)
}

func (m *mockGateway) ListPayments(ctx context.Context, since time.Time) ([]payments.Payment, error) {
	args := m.Called(ctx, since)
	list, _ := args.Get(0).([]payments.Payment)
	return list, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, req payments.RefundRequest) (*payments.RefundResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payments.RefundResult)
	return res, args.Error(1)
}

type recordingNotifier struct {
	sent []string
	err  error
}

func (n *recordingNotifier) RefundIssued(ctx context.Context, record *RefundRecord) error {
	n.sent = append(n.sent, record.PaymentID)
	return n.err
}

var t0 = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

type compensatorFixture struct {
	db       *gorm.DB
	gateway  *mockGateway
	notifier *recordingNotifier
	c        *Compensator
	clock    time.Time
}

func newCompensatorFixture(t *testing.T) *compensatorFixture {
	t.Helper()
	f := &compensatorFixture{
		db:       testdb.Open(t, &RefundRecord{}, &CompensationFailure{}, &RefundRequest{}),
		gateway:  &mockGateway{},
		notifier: &recordingNotifier{},
		clock:    t0,
	}
	f.c = NewCompensator(f.db, f.gateway, f.notifier, CompensatorConfig{
		Timeout:     time.Second,
		MaxAttempts: 3,
		BaseBackoff: time.Minute,
	}, logger.Discard())
	f.c.now = func() time.Time { return f.clock }
	return f
}

func refundFor(paymentID string) *payments.RefundResult {
	return &payments.RefundResult{RefundID: "rf-" + paymentID, Status: "PENDING", Raw: []byte(`{"refund":{"id":"rf-` + paymentID + `"}}`)}
}

func matchKey(paymentID string, amount float64) interface{} {
	return mock.MatchedBy(func(r payments.RefundRequest) bool {
		return r.PaymentID == paymentID && r.Amount == amount && r.IdempotencyKey == "refund:"+paymentID
	})
}

func TestCompensateIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newCompensatorFixture(t)
	ctx := context.Background()

	f.gateway.On("Refund", mock.Anything, matchKey("p1", 10)).Return(refundFor("p1"), nil).Once()

	req := CompensationRequest{PaymentID: "p1", Amount: 10, Currency: "CAD", Email: "a@example.com", Reason: ReasonRegistrationFailed}
	first, err := f.c.Compensate(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.AlreadyRefunded)
	assert.Equal(t, "rf-p1", first.Record.RefundID)
	assert.Equal(t, SourceCompensation, first.Record.Source)
	assert.Equal(t, "system", first.Record.ProcessedBy)
	assert.JSONEq(t, `{"refund":{"id":"rf-p1"}}`, string(first.Record.RawGatewayPayload))

	second, err := f.c.Compensate(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.AlreadyRefunded)
	assert.Equal(t, first.Record.ID, second.Record.ID)

	var count int64
	require.NoError(t, f.db.Model(&RefundRecord{}).Where("payment_id = ?", "p1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	f.gateway.AssertExpectations(t)
	assert.Equal(t, []string{"p1"}, f.notifier.sent)
}

func TestCompensateRejectsEmptyRequests(t *testing.T) {
	t.Parallel()
	f := newCompensatorFixture(t)

	_, err := f.c.Compensate(context.Background(), CompensationRequest{Amount: 5})
	assert.True(t, errors.Is(err, apperrors.New(apperrors.CodeInvalidRequest, "")))
	f.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
}

func TestGatewayFailureIsQueuedThenRetried(t *testing.T) {
	t.Parallel()
	f := newCompensatorFixture(t)
	ctx := context.Background()

	f.gateway.On("Refund", mock.Anything, matchKey("p2", 25)).Return(nil, errors.New("gateway timeout")).Twice()

	req := CompensationRequest{PaymentID: "p2", Amount: 25, Currency: "CAD", Reason: ReasonVerificationFailed}
	_, err := f.c.Compensate(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrRefundFailed))

	var failure CompensationFailure
	require.NoError(t, f.db.Where("payment_id = ?", "p2").First(&failure).Error)
	assert.Equal(t, FailurePending, failure.Status)
	assert.Equal(t, 1, failure.Attempts)
	assert.Equal(t, "gateway timeout", failure.LastError)
	assert.True(t, failure.NextAttemptAt.Equal(t0.Add(time.Minute)))

	processor := NewRetryProcessor(f.db, f.c, time.Minute, 10, logger.Discard())

	// Not due yet.
	resolved, err := processor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)

	f.clock = t0.Add(time.Minute)
	resolved, err = processor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)

	require.NoError(t, f.db.Where("payment_id = ?", "p2").First(&failure).Error)
	assert.Equal(t, 2, failure.Attempts)
	assert.True(t, failure.NextAttemptAt.Equal(f.clock.Add(2*time.Minute)))

	f.gateway.On("Refund", mock.Anything, matchKey("p2", 25)).Return(refundFor("p2"), nil).Once()
	f.clock = f.clock.Add(2 * time.Minute)
	resolved, err = processor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	require.NoError(t, f.db.Where("payment_id = ?", "p2").First(&failure).Error)
	assert.Equal(t, FailureResolved, failure.Status)
	require.NotNil(t, failure.ResolvedAt)

	var record RefundRecord
	require.NoError(t, f.db.Where("payment_id = ?", "p2").First(&record).Error)
	assert.Equal(t, "rf-p2", record.RefundID)
	f.gateway.AssertExpectations(t)
}

func TestFailureIsAbandonedAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	f := newCompensatorFixture(t)
	ctx := context.Background()

	f.gateway.On("Refund", mock.Anything, mock.Anything).Return(nil, errors.New("card issuer down"))

	req := CompensationRequest{PaymentID: "p3", Amount: 7, Currency: "CAD"}
	for i := 0; i < 3; i++ {
		_, err := f.c.Compensate(ctx, req)
		require.Error(t, err)
	}

	var failure CompensationFailure
	require.NoError(t, f.db.Where("payment_id = ?", "p3").First(&failure).Error)
	assert.Equal(t, FailureAbandoned, failure.Status)
	assert.Equal(t, 3, failure.Attempts)

	// Abandoned rows are left to an admin.
	f.clock = t0.Add(48 * time.Hour)
	resolved, err := NewRetryProcessor(f.db, f.c, time.Minute, 10, logger.Discard()).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)
	f.gateway.AssertNumberOfCalls(t, "Refund", 3)
}

func TestNotifierFailureDoesNotUndoTheRefund(t *testing.T) {
	t.Parallel()
	f := newCompensatorFixture(t)
	f.notifier.err = errors.New("broker down")

	f.gateway.On("Refund", mock.Anything, mock.Anything).Return(refundFor("p4"), nil).Once()

	res, err := f.c.Compensate(context.Background(), CompensationRequest{PaymentID: "p4", Amount: 3, Currency: "CAD"})
	require.NoError(t, err)
	assert.Equal(t, "rf-p4", res.Record.RefundID)
}

func TestCompensateSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()
	f := newCompensatorFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.gateway.On("Refund", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).
		Return(refundFor("p5"), nil).Once()

	_, err := f.c.Compensate(ctx, CompensationRequest{PaymentID: "p5", Amount: 3, Currency: "CAD"})
	require.NoError(t, err)
	f.gateway.AssertExpectations(t)
}

func TestBackoff(t *testing.T) {
	t.Parallel()
	c := &Compensator{cfg: CompensatorConfig{BaseBackoff: time.Hour}}
	assert.Equal(t, time.Hour, c.backoff(1))
	assert.Equal(t, 4*time.Hour, c.backoff(3))
	assert.Equal(t, maxBackoff, c.backoff(10))
}
