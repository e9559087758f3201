// Package payments talks to the card processor. The core only ever verifies
// a payment it did not create and refunds one it cannot honour.
package payments

import (
	"context"
	"encoding/json"
	"math"
	"time"
)

// VerifyTolerance is the largest captured-amount difference, in minor units,
// still treated as a match.
const VerifyTolerance = 1

const StatusCompleted = "COMPLETED"

type RefundRequest struct {
	PaymentID string
	Amount    float64
	Currency  string
	Reason    string

	// IdempotencyKey must be stable across retries of the same refund
	IdempotencyKey string
}

type RefundResult struct {
	RefundID string          `json:"refund_id"`
	Status   string          `json:"status"`
	Amount   float64         `json:"amount"`
	Currency string          `json:"currency"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Payment is a charge as the processor reports it.
type Payment struct {
	ID            string    `json:"payment_id"`
	Status        string    `json:"status"`
	AmountMinor   int64     `json:"amount_minor"`
	RefundedMinor int64     `json:"refunded_minor"`
	Currency      string    `json:"currency"`
	Email         string    `json:"email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CapturedMinor is what can still be sent back. Only completed payments hold money.
func (p *Payment) CapturedMinor() int64 {
	if p == nil || p.Status != StatusCompleted {
		return 0
	}
	if left := p.AmountMinor - p.RefundedMinor; left > 0 {
		return left
	}
	return 0
}

// Verification is the outcome of checking a payment against a price.
type Verification struct {
	OK            bool
	Status        string
	CapturedMinor int64
	Currency      string
}

// Captured is the amount a refund of this payment may send back. Zero means
// nothing was taken.
func (v *Verification) Captured() float64 {
	if v == nil || v.CapturedMinor <= 0 {
		return 0
	}
	return FromMinor(v.CapturedMinor)
}

// Check compares a payment with the expected amount.
func Check(p *Payment, expected float64) *Verification {
	captured := p.CapturedMinor()
	return &Verification{
		OK:            p.Status == StatusCompleted && AmountMatches(captured, expected),
		Status:        p.Status,
		CapturedMinor: captured,
		Currency:      p.Currency,
	}
}

type Gateway interface {
	// Verify reports whether the payment completed for expected, within
	// VerifyTolerance, and how much it actually captured.
	Verify(ctx context.Context, paymentID string, expected float64) (*Verification, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)

	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	// ListPayments returns every payment created at or after since.
	ListPayments(ctx context.Context, since time.Time) ([]Payment, error)
}

// IdempotencyKey derives the refund key from the payment, so a retried
// compensation can never reverse the same charge twice.
func IdempotencyKey(paymentID string) string {
	return "refund:" + paymentID
}

// ToMinor converts a major-unit amount to cents.
func ToMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromMinor(minor int64) float64 {
	return float64(minor) / 100
}

// AmountMatches applies the verification tolerance.
func AmountMatches(captured int64, expected float64) bool {
	diff := captured - ToMinor(expected)
	if diff < 0 {
		diff = -diff
	}
	return diff <= VerifyTolerance
}
