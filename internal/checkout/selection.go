// Package checkout validates what a user is trying to buy and what it costs,
// and serves the read-only availability endpoints.
package checkout

import (
	"context"
	"fmt"
	"time"

	"eventreg/internal/capacity"
	"eventreg/internal/events"
	"eventreg/internal/shared/apperrors"
	"eventreg/internal/tiers"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request is the raw selection from the client.
type Request struct {
	TierID      *uuid.UUID
	SubEventIDs []uuid.UUID
	Audience    string
}

// Selection is a validated request bound to its event rows.
type Selection struct {
	Event     *events.Event
	Tier      *events.TicketTier
	SubEvents []events.SubEvent
}

// Scopes lists every capacity pool the selection consumes a seat from.
func (s *Selection) Scopes() []capacity.Scope {
	scopes := []capacity.Scope{capacity.EventScope(s.Event)}
	if s.Tier != nil {
		scopes = append(scopes, capacity.TierScope(s.Tier))
	}
	for i := range s.SubEvents {
		scopes = append(scopes, capacity.SubEventScope(&s.SubEvents[i]))
	}
	return scopes
}

func (s *Selection) TierID() *uuid.UUID {
	if s.Tier == nil {
		return nil
	}
	id := s.Tier.ID
	return &id
}

func (s *Selection) SubEventIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.SubEvents))
	for _, sub := range s.SubEvents {
		ids = append(ids, sub.ID)
	}
	return ids
}

// standaloneOnly reports a purchase of sub-events without a main ticket.
func (s *Selection) standaloneOnly() bool {
	if s.Tier != nil || len(s.SubEvents) == 0 {
		return false
	}
	for _, sub := range s.SubEvents {
		if !sub.Standalone {
			return false
		}
	}
	return true
}

type Validator struct {
	resolver *tiers.Resolver
	ledger   *capacity.Ledger
}

func NewValidator(resolver *tiers.Resolver, ledger *capacity.Ledger) *Validator {
	return &Validator{resolver: resolver, ledger: ledger}
}

// Resolve checks the request against the event's tiers and sub-events. It
// runs inside the caller's transaction, after the event row is locked, so the
// tier cascade sees the same counts the capacity check will.
func (v *Validator) Resolve(ctx context.Context, tx *gorm.DB, event *events.Event, req Request) (*Selection, error) {
	sel := &Selection{Event: event}

	if err := v.resolveTier(ctx, tx, sel, req); err != nil {
		return nil, err
	}
	if err := v.resolveSubEvents(ctx, tx, sel, req.SubEventIDs); err != nil {
		return nil, err
	}

	if sel.Tier == nil && event.AdvancedTicketing && !sel.standaloneOnly() {
		tierList, err := events.ListTiers(tx.WithContext(ctx), event.ID)
		if err != nil {
			return nil, err
		}
		if len(tierList) > 0 {
			return nil, invalid("a ticket tier must be selected for this event")
		}
	}
	return sel, nil
}

// Now is the clock capacity decisions are made against.
func (v *Validator) Now() time.Time {
	return v.ledger.Now()
}

// Require fails with CapacityExceeded unless every scope of the selection has a seat.
func (v *Validator) Require(ctx context.Context, tx *gorm.DB, sel *Selection) error {
	return v.ledger.Require(ctx, tx, sel.Scopes()...)
}

func (v *Validator) resolveTier(ctx context.Context, tx *gorm.DB, sel *Selection, req Request) error {
	if req.TierID == nil {
		return nil
	}
	if !sel.Event.AdvancedTicketing {
		return invalid("this event does not sell ticket tiers")
	}

	decisions, err := v.resolver.Evaluate(ctx, tx, sel.Event, v.ledger.Now(), req.Audience)
	if err != nil {
		return err
	}
	for _, d := range decisions {
		if d.Tier.ID != *req.TierID {
			continue
		}
		switch {
		case d.Purchasable:
			tier := d.Tier
			sel.Tier = &tier
			return nil
		case d.Reason == tiers.ReasonSoldOut:
			return apperrors.New(apperrors.CodeCapacityExceeded, fmt.Sprintf("ticket tier %q is sold out", d.Tier.Name))
		default:
			return invalid(fmt.Sprintf("ticket tier %q is not on sale (%s)", d.Tier.Name, d.Reason))
		}
	}
	return invalid("ticket tier does not belong to this event")
}

func (v *Validator) resolveSubEvents(ctx context.Context, tx *gorm.DB, sel *Selection, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if !sel.Event.HasSubEvents {
		return invalid("this event has no sub-events")
	}

	subs, err := events.ListSubEvents(tx.WithContext(ctx), sel.Event.ID)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]events.SubEvent, len(subs))
	for _, s := range subs {
		byID[s.ID] = s
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return invalid("sub-event selected twice")
		}
		seen[id] = true

		sub, ok := byID[id]
		if !ok {
			return invalid("sub-event does not belong to this event")
		}
		sel.SubEvents = append(sel.SubEvents, sub)
	}

	if len(sel.SubEvents) > 1 {
		for _, sub := range sel.SubEvents {
			if !sub.Combinable {
				return invalid(fmt.Sprintf("sub-event %q cannot be combined with others", sub.Name))
			}
		}
	}
	return nil
}

func invalid(msg string) error {
	return apperrors.New(apperrors.CodeInvalidTierOrSubEvent, msg)
}
