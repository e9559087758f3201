package credits

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eventreg/internal/shared/apperrors"
	"eventreg/internal/shared/database/testdb"
	"eventreg/internal/shared/middleware"
	"eventreg/internal/shared/utils/response"
	"eventreg/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(testdb.Open(t, &CreditTransaction{}), logger.Discard())
}

func TestGrantAndDeduct(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()
	user, event := uuid.New(), uuid.New()

	bal, err := svc.Balance(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, bal)

	_, err = svc.Grant(ctx, user, GrantRequest{Amount: 20}, "admin-1")
	require.NoError(t, err)
	_, err = svc.Grant(ctx, user, GrantRequest{Amount: 5.5, Reason: "goodwill"}, "admin-1")
	require.NoError(t, err)

	require.NoError(t, svc.Deduct(ctx, user, 12.25, event))

	bal, err = svc.Balance(ctx, user)
	require.NoError(t, err)
	assert.InDelta(t, 13.25, bal, 0.001)

	err = svc.Deduct(ctx, user, 14, event)
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientCredits))

	bal, err = svc.Balance(ctx, user)
	require.NoError(t, err)
	assert.InDelta(t, 13.25, bal, 0.001, "a refused spend leaves the balance alone")

	other, err := svc.Balance(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, other)
}

func TestGrantRejectsNonPositiveAmounts(t *testing.T) {
	t.Parallel()
	svc := newService(t)

	_, err := svc.Grant(context.Background(), uuid.New(), GrantRequest{Amount: 0}, "admin")
	assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.CodeOf(err))
	assert.NoError(t, svc.Deduct(context.Background(), uuid.New(), 0, uuid.New()))
}

func TestStatement(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := svc.Grant(ctx, user, GrantRequest{Amount: 10}, "admin")
		require.NoError(t, err)
	}

	st, err := svc.Statement(ctx, user, 2)
	require.NoError(t, err)
	assert.Equal(t, 30.0, st.Balance)
	assert.Len(t, st.Transactions, 2)
}

func TestCreditEndpoints(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	user := uuid.New()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	admin := []gin.HandlerFunc{func(c *gin.Context) { c.Set(middleware.ContextUserID, "admin-7") }}
	SetupCreditRoutes(r.Group("/api/v1"), NewController(svc), admin)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/"+user.String()+"/credits", strings.NewReader(`{"amount": 15, "reason": "apology"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/"+user.String()+"/credits", strings.NewReader(`{"amount": -3}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/"+user.String()+"/credits", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var env response.StandardApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	data := env.Data.(map[string]interface{})
	assert.Equal(t, 15.0, data["balance"])
	txns := data["transactions"].([]interface{})
	require.Len(t, txns, 1)
	assert.Equal(t, "admin-7", txns[0].(map[string]interface{})["created_by"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/nope/credits", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
