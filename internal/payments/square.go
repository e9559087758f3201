package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eventreg/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "eventreg/payments"

	// listPageLimit bounds a single ListPayments walk
	listPageLimit = 50
)

type SquareConfig struct {
	BaseURL     string
	AccessToken string
	Version     string
	Timeout     time.Duration
}

// SquareClient is the Gateway over the Square Payments and Refunds REST APIs.
type SquareClient struct {
	cfg    SquareConfig
	http   *http.Client
	tracer trace.Tracer
	log    *logger.Logger
}

func NewSquareClient(cfg SquareConfig, log *logger.Logger) *SquareClient {
	return &SquareClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		tracer: otel.Tracer(tracerName),
		log:    log.WithComponent("square"),
	}
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squarePayment struct {
	ID                string       `json:"id"`
	Status            string       `json:"status"`
	AmountMoney       squareMoney  `json:"amount_money"`
	RefundedMoney     *squareMoney `json:"refunded_money,omitempty"`
	BuyerEmailAddress string       `json:"buyer_email_address"`
	CreatedAt         time.Time    `json:"created_at"`
}

func (p squarePayment) toPayment() Payment {
	out := Payment{
		ID:          p.ID,
		Status:      p.Status,
		AmountMinor: p.AmountMoney.Amount,
		Currency:    p.AmountMoney.Currency,
		Email:       p.BuyerEmailAddress,
		CreatedAt:   p.CreatedAt,
	}
	if p.RefundedMoney != nil {
		out.RefundedMinor = p.RefundedMoney.Amount
	}
	return out
}

type squareRefund struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	AmountMoney squareMoney `json:"amount_money"`
}

type squareError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type squareErrors struct {
	Errors []squareError `json:"errors"`
}

func (e squareErrors) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, se := range e.Errors {
		parts = append(parts, se.Code+": "+se.Detail)
	}
	return strings.Join(parts, "; ")
}

// ErrPaymentNotFound is returned for an unknown payment id
var ErrPaymentNotFound = errors.New("payment not found")

// GetPayment reads one payment. An unknown id answers ErrPaymentNotFound.
func (s *SquareClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	ctx, span := s.tracer.Start(ctx, "square.get_payment", trace.WithAttributes(
		attribute.String("payment.id", paymentID),
	))
	defer span.End()

	var body struct {
		Payment squarePayment `json:"payment"`
	}
	status, err := s.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &body)
	if status == http.StatusNotFound {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	p := body.Payment.toPayment()
	span.SetAttributes(
		attribute.String("payment.status", p.Status),
		attribute.Int64("payment.amount_minor", p.AmountMinor),
	)
	return &p, nil
}

func (s *SquareClient) Verify(ctx context.Context, paymentID string, expected float64) (*Verification, error) {
	ctx, span := s.tracer.Start(ctx, "square.verify", trace.WithAttributes(
		attribute.String("payment.id", paymentID),
		attribute.Int64("payment.expected_minor", ToMinor(expected)),
	))
	defer span.End()

	p, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	v := Check(p, expected)
	span.SetAttributes(
		attribute.Bool("payment.verified", v.OK),
		attribute.Int64("payment.captured_minor", v.CapturedMinor),
	)
	if !v.OK {
		s.log.Warn("payment did not verify",
			"payment_id", paymentID,
			"status", p.Status,
			"captured_minor", v.CapturedMinor,
			"expected_minor", ToMinor(expected),
		)
	}
	return v, nil
}

// ListPayments walks the payment list from since onwards, following cursors.
func (s *SquareClient) ListPayments(ctx context.Context, since time.Time) ([]Payment, error) {
	ctx, span := s.tracer.Start(ctx, "square.list_payments", trace.WithAttributes(
		attribute.String("payments.begin_time", since.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	var (
		out    []Payment
		cursor string
	)
	for page := 0; page < listPageLimit; page++ {
		q := url.Values{}
		q.Set("begin_time", since.UTC().Format(time.RFC3339))
		q.Set("sort_order", "ASC")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var body struct {
			Payments []squarePayment `json:"payments"`
			Cursor   string          `json:"cursor"`
		}
		if _, err := s.do(ctx, http.MethodGet, "/payments?"+q.Encode(), nil, &body); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		for _, p := range body.Payments {
			out = append(out, p.toPayment())
		}
		if body.Cursor == "" {
			span.SetAttributes(attribute.Int("payments.count", len(out)))
			return out, nil
		}
		cursor = body.Cursor
	}

	s.log.Warn("payment listing truncated", "pages", listPageLimit, "payments", len(out))
	span.SetAttributes(attribute.Int("payments.count", len(out)), attribute.Bool("payments.truncated", true))
	return out, nil
}

func (s *SquareClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	ctx, span := s.tracer.Start(ctx, "square.refund", trace.WithAttributes(
		attribute.String("payment.id", req.PaymentID),
		attribute.Int64("refund.amount_minor", ToMinor(req.Amount)),
	))
	defer span.End()

	key := req.IdempotencyKey
	if key == "" {
		key = IdempotencyKey(req.PaymentID)
	}
	payload := map[string]interface{}{
		"idempotency_key": key,
		"payment_id":      req.PaymentID,
		"amount_money":    squareMoney{Amount: ToMinor(req.Amount), Currency: strings.ToUpper(req.Currency)},
		"reason":          truncate(req.Reason, 192),
	}

	var raw json.RawMessage
	if _, err := s.do(ctx, http.MethodPost, "/refunds", payload, &raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var body struct {
		Refund squareRefund `json:"refund"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode square refund: %w", err)
	}
	if body.Refund.ID == "" {
		return nil, errors.New("square refund response carried no refund id")
	}

	span.SetAttributes(attribute.String("refund.id", body.Refund.ID), attribute.String("refund.status", body.Refund.Status))
	return &RefundResult{
		RefundID: body.Refund.ID,
		Status:   body.Refund.Status,
		Amount:   FromMinor(body.Refund.AmountMoney.Amount),
		Currency: body.Refund.AmountMoney.Currency,
		Raw:      raw,
	}, nil
}

// do sends one request and decodes a 2xx body into out. A non-2xx answer is
// returned as an error carrying Square's error list, alongside the status.
func (s *SquareClient) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	var reqBody io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode square request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("build square request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	req.Header.Set("Square-Version", s.cfg.Version)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("square %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read square response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var se squareErrors
		if json.Unmarshal(data, &se) == nil && len(se.Errors) > 0 {
			return resp.StatusCode, fmt.Errorf("square %s %s: status %d: %w", method, path, resp.StatusCode, se)
		}
		return resp.StatusCode, fmt.Errorf("square %s %s: status %d", method, path, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode square response: %w", err)
	}
	return resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
