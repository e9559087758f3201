package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByCode(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeCapacityExceeded, "tier sold out", errors.New("tier 1 has 0 seats"))
	wrapped := fmt.Errorf("reserve: %w", err)

	assert.True(t, errors.Is(wrapped, ErrCapacityExceeded))
	assert.False(t, errors.Is(wrapped, ErrAlreadyRegistered))
	assert.Equal(t, CodeCapacityExceeded, CodeOf(wrapped))
	assert.Equal(t, "tier sold out", MessageOf(wrapped))
	assert.Equal(t, "tier sold out: tier 1 has 0 seats", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{ErrCapacityExceeded, http.StatusConflict},
		{ErrAlreadyRegistered, http.StatusConflict},
		{ErrPaymentAlreadyUsed, http.StatusConflict},
		{ErrReservationNotFound, http.StatusNotFound},
		{ErrPaymentRequired, http.StatusPaymentRequired},
		{ErrPaymentVerificationFailed, http.StatusPaymentRequired},
		{ErrRefundFailed, http.StatusBadGateway},
		{ErrInvalidTierOrSubEvent, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestMessageOfHidesInternalErrors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "internal server error", MessageOf(errors.New("pq: connection refused")))
}
