package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventreg/internal/shared/apperrors"

	"github.com/google/uuid"
)

type Service interface {
	CreateEvent(ctx context.Context, req CreateEventRequest) (*EventResponse, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	ListEvents(ctx context.Context, query ListQuery) (*PaginatedEvents, error)
}

type service struct {
	repo            Repository
	defaultCurrency string
}

func NewService(repo Repository, defaultCurrency string) Service {
	return &service{repo: repo, defaultCurrency: defaultCurrency}
}

func (s *service) CreateEvent(ctx context.Context, req CreateEventRequest) (*EventResponse, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	event := &Event{
		Name:              req.Name,
		Description:       req.Description,
		StartsAt:          req.StartsAt.UTC(),
		Capacity:          req.Capacity,
		Fee:               req.Fee,
		Currency:          currency,
		AdvancedTicketing: req.AdvancedTicketing,
		HasSubEvents:      req.HasSubEvents,
		RefundDeadline:    utcPtr(req.RefundDeadline),
	}
	for _, t := range req.Tiers {
		event.Tiers = append(event.Tiers, TicketTier{
			Name:           t.Name,
			Price:          t.Price,
			Capacity:       t.Capacity,
			TargetAudience: t.TargetAudience,
			SortOrder:      t.SortOrder,
			StartDate:      utcPtr(t.StartDate),
			EndDate:        utcPtr(t.EndDate),
		})
	}
	for _, sub := range req.SubEvents {
		event.SubEvents = append(event.SubEvents, SubEvent{
			Name:       sub.Name,
			Price:      sub.Price,
			Capacity:   sub.Capacity,
			Combinable: sub.Combinable,
			Standalone: sub.Standalone,
		})
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	resp := event.ToResponse()
	return &resp, nil
}

func (s *service) GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	event, err := s.repo.GetWithOptions(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := event.ToResponse()
	return &resp, nil
}

func (s *service) ListEvents(ctx context.Context, query ListQuery) (*PaginatedEvents, error) {
	list, total, err := s.repo.List(ctx, query.Limit, (query.Page-1)*query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := &PaginatedEvents{
		Events:     make([]EventResponse, 0, len(list)),
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
	}
	for i := range list {
		out.Events = append(out.Events, list[i].ToResponse())
	}
	return out, nil
}

func validateCreate(req CreateEventRequest) error {
	if len(req.Tiers) > 0 && !req.AdvancedTicketing {
		return apperrors.New(apperrors.CodeInvalidRequest, "tiers require advanced_ticketing")
	}
	if len(req.SubEvents) > 0 && !req.HasSubEvents {
		return apperrors.New(apperrors.CodeInvalidRequest, "sub_events require has_sub_events")
	}
	for _, t := range req.Tiers {
		if t.StartDate != nil && t.EndDate != nil && t.EndDate.Before(*t.StartDate) {
			return apperrors.New(apperrors.CodeInvalidRequest, fmt.Sprintf("tier %q ends before it starts", t.Name))
		}
	}
	if req.RefundDeadline != nil && req.RefundDeadline.After(req.StartsAt) {
		return apperrors.New(apperrors.CodeInvalidRequest, "refund_deadline must not be after the event starts")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
