package refunds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventreg/internal/payments"
	"eventreg/internal/shared/apperrors"
	"eventreg/internal/shared/middleware"
	"eventreg/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func completed(id string, minor int64, email string) payments.Payment {
	return payments.Payment{ID: id, Status: payments.StatusCompleted, AmountMinor: minor, Currency: "CAD", Email: email, CreatedAt: t0.Add(-time.Hour)}
}

// seedProcessor lists one payment per way a charge can be accounted for.
func seedProcessor(t *testing.T, f *workflowFixture) {
	t.Helper()
	f.regs.used["cancelled-reg"] = true

	require.NoError(t, f.db.Create(&RefundRecord{
		PaymentID: "refunded", RefundID: "rf-refunded", Amount: 10, Currency: "CAD",
		RefundDate: t0, Source: SourceCompensation, ProcessedBy: "system",
	}).Error)
	require.NoError(t, f.db.Create(&CompensationFailure{
		PaymentID: "queued", Amount: 15, Currency: "CAD", Status: FailurePending, NextAttemptAt: t0,
	}).Error)

	f.gateway.On("ListPayments", mock.Anything, mock.Anything).Return([]payments.Payment{
		completed("pay-1", 4000, "payer@example.com"),
		completed("orphan", 2500, "orphan@example.com"),
		completed("refunded", 1000, ""),
		completed("queued", 1500, ""),
		completed("cancelled-reg", 1000, ""),
		{ID: "failed", Status: "FAILED", AmountMinor: 1000, Currency: "CAD"},
		{ID: "partly", Status: payments.StatusCompleted, AmountMinor: 3000, RefundedMinor: 3000, Currency: "CAD"},
	}, nil)
}

func TestListUnregistered(t *testing.T) {
	t.Parallel()
	f := newWorkflowFixture(t)
	seedProcessor(t, f)

	list, err := f.svc.ListUnregistered(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "orphan", list[0].PaymentID)
	assert.Equal(t, 25.0, list[0].Amount)
	assert.Equal(t, "orphan@example.com", list[0].Email)
	assert.False(t, list[0].PendingRetry)

	assert.Equal(t, "queued", list[1].PaymentID)
	assert.True(t, list[1].PendingRetry)

	since := f.gateway.Calls[0].Arguments.Get(1).(time.Time)
	assert.True(t, since.Equal(t0.Add(-DefaultUnregisteredLookback)))
}

func TestListUnregisteredGatewayError(t *testing.T) {
	t.Parallel()
	f := newWorkflowFixture(t)
	f.gateway.On("ListPayments", mock.Anything, mock.Anything).Return(nil, errors.New("square down"))

	_, err := f.svc.ListUnregistered(context.Background(), t0.Add(-time.Hour))
	assert.True(t, errors.Is(err, apperrors.ErrRefundFailed))
}

func TestRefundUnregistered(t *testing.T) {
	t.Parallel()
	f := newWorkflowFixture(t)
	ctx := context.Background()
	orphan := completed("orphan", 2500, "orphan@example.com")

	f.gateway.On("GetPayment", mock.Anything, "orphan").Return(&orphan, nil)
	f.gateway.On("Refund", mock.Anything, matchKey("orphan", 25)).Return(refundFor("orphan"), nil).Once()

	res, err := f.svc.RefundUnregistered(ctx, "orphan", "admin-9")
	require.NoError(t, err)
	assert.False(t, res.AlreadyRefunded)
	assert.Equal(t, SourceReconciliation, res.Record.Source)
	assert.Equal(t, "admin-9", res.Record.ProcessedBy)
	assert.Equal(t, ReasonUnregisteredPayment, res.Record.Reason)
	assert.Equal(t, "orphan@example.com", res.Record.Email)

	again, err := f.svc.RefundUnregistered(ctx, "orphan", "admin-9")
	require.NoError(t, err)
	assert.True(t, again.AlreadyRefunded)
	f.gateway.AssertExpectations(t)
}

func TestRefundUnregisteredRefusals(t *testing.T) {
	t.Parallel()

	paid := completed("pay-1", 4000, "")
	failed := payments.Payment{ID: "failed", Status: "FAILED", AmountMinor: 1000, Currency: "CAD"}

	tests := []struct {
		name    string
		id      string
		payment *payments.Payment
		err     error
		code    apperrors.Code
	}{
		{name: "backs a registration", id: "pay-1", payment: &paid, code: apperrors.CodeRefundNotAllowed},
		{name: "nothing captured", id: "failed", payment: &failed, code: apperrors.CodeRefundNotAllowed},
		{name: "unknown payment", id: "missing", err: payments.ErrPaymentNotFound, code: apperrors.CodePaymentNotFound},
		{name: "gateway down", id: "any", err: errors.New("timeout"), code: apperrors.CodeRefundFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newWorkflowFixture(t)
			f.gateway.On("GetPayment", mock.Anything, tt.id).Return(tt.payment, tt.err)

			_, err := f.svc.RefundUnregistered(context.Background(), tt.id, "admin-9")
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
			f.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
		})
	}
}

func newAdminEngine(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	admin := []gin.HandlerFunc{func(c *gin.Context) {
		c.Set(middleware.ContextUserID, "admin-9")
		c.Next()
	}}
	SetupRefundRoutes(r.Group("/api/v1"), NewController(svc), admin)
	return r
}

func serve(t *testing.T, engine *gin.Engine, method, path string) (*httptest.ResponseRecorder, response.StandardApiResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var env response.StandardApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestUnregisteredEndpoints(t *testing.T) {
	t.Parallel()
	f := newWorkflowFixture(t)
	seedProcessor(t, f)
	engine := newAdminEngine(f.svc)

	orphan := completed("orphan", 2500, "orphan@example.com")
	f.gateway.On("GetPayment", mock.Anything, "orphan").Return(&orphan, nil)
	f.gateway.On("GetPayment", mock.Anything, "pay-1").Return(&payments.Payment{ID: "pay-1", Status: payments.StatusCompleted, AmountMinor: 4000}, nil)
	f.gateway.On("Refund", mock.Anything, matchKey("orphan", 25)).Return(refundFor("orphan"), nil).Once()

	rec, env := serve(t, engine, http.MethodGet, "/api/v1/admin/reconciliation/unregistered?since=2026-03-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.Data, 2)

	since := f.gateway.Calls[0].Arguments.Get(1).(time.Time)
	assert.True(t, since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	rec, _ = serve(t, engine, http.MethodGet, "/api/v1/admin/reconciliation/unregistered?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = serve(t, engine, http.MethodPost, "/api/v1/admin/reconciliation/unregistered/orphan/refund")
	require.Equal(t, http.StatusOK, rec.Code)
	record := env.Data.(map[string]interface{})["record"].(map[string]interface{})
	assert.Equal(t, "admin-9", record["processed_by"])
	assert.Equal(t, "RECONCILIATION", record["source"])

	rec, env = serve(t, engine, http.MethodPost, "/api/v1/admin/reconciliation/unregistered/pay-1/refund")
	assert.Equal(t, http.StatusConflict, rec.Code)
	m, _ := env.Errors.(map[string]interface{})
	assert.Equal(t, "REFUND_NOT_ALLOWED", m["code"])

	// The report no longer lists what was just refunded.
	list, err := f.svc.ListUnregistered(context.Background(), t0.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "queued", list[0].PaymentID)
}
