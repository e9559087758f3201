package registrations

import (
	"context"

	"eventreg/internal/refunds"

	"github.com/google/uuid"
)

type refundLookup struct {
	repo    Repository
	service Service
}

// NewRefundLookup exposes registrations to the manual refund workflow.
func NewRefundLookup(repo Repository, service Service) refunds.RegistrationLookup {
	return &refundLookup{repo: repo, service: service}
}

func (a *refundLookup) Lookup(ctx context.Context, eventID, userID uuid.UUID) (*refunds.PaidRegistration, error) {
	reg, err := a.repo.Get(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	out := &refunds.PaidRegistration{
		ID:      reg.ID,
		EventID: reg.EventID,
		UserID:  reg.UserID,
		Amount:  reg.FinalPrice,
		Email:   reg.PaymentEmail,
	}
	if reg.PaymentID != nil {
		out.PaymentID = *reg.PaymentID
	}
	return out, nil
}

func (a *refundLookup) Cancel(ctx context.Context, eventID, userID uuid.UUID) error {
	return a.service.Cancel(ctx, eventID, userID)
}

func (a *refundLookup) UsedPayments(ctx context.Context, paymentIDs []string) (map[string]bool, error) {
	return a.repo.UsedPayments(ctx, paymentIDs)
}
