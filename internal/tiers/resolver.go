// Package tiers decides which ticket tiers of an event can be bought right now.
package tiers

import (
	"context"
	"time"

	"eventreg/internal/capacity"
	"eventreg/internal/events"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// State is a tier together with its remaining capacity.
type State struct {
	Tier      events.TicketTier
	Available int
}

// Decision is the outcome for one tier.
type Decision struct {
	Tier        events.TicketTier `json:"tier"`
	Available   int               `json:"available"`
	Purchasable bool              `json:"purchasable"`
	OpenedEarly bool              `json:"opened_early"`
	Reason      string            `json:"reason,omitempty"`
}

// Reasons a tier is not purchasable
const (
	ReasonNotStarted = "not_started"
	ReasonEnded      = "ended"
	ReasonSoldOut    = "sold_out"
	ReasonAudience   = "audience"
)

// Cascade evaluates tiers given in cascade order (see events.TierOrder).
//
// A tier is purchasable when its window contains asOf, it matches the
// audience, and it has a seat left. When a tier is exhausted the next tier's
// start date is waived; this propagates down the list, so a run of exhausted
// tiers opens the first tier after them. End dates are never waived.
func Cascade(states []State, asOf time.Time, audience string) []Decision {
	out := make([]Decision, 0, len(states))
	for i, s := range states {
		d := Decision{Tier: s.Tier, Available: s.Available}
		previousExhausted := i > 0 && states[i-1].Available <= 0

		switch {
		case !s.Tier.MatchesAudience(audience):
			d.Reason = ReasonAudience
		case s.Tier.EndedBy(asOf):
			d.Reason = ReasonEnded
		case s.Available <= 0:
			d.Reason = ReasonSoldOut
		case s.Tier.StartedBy(asOf):
			d.Purchasable = true
		case previousExhausted:
			d.Purchasable = true
			d.OpenedEarly = true
		default:
			d.Reason = ReasonNotStarted
		}
		out = append(out, d)
	}
	return out
}

type Resolver struct {
	db     *gorm.DB
	ledger *capacity.Ledger
}

func NewResolver(db *gorm.DB, ledger *capacity.Ledger) *Resolver {
	return &Resolver{db: db, ledger: ledger}
}

// ListAvailable returns the tiers a caller in audience can buy at asOf.
// Events without advanced ticketing have no tiers to offer.
func (r *Resolver) ListAvailable(ctx context.Context, eventID uuid.UUID, asOf time.Time, audience string) ([]Decision, error) {
	event, err := events.Find(r.db.WithContext(ctx), eventID)
	if err != nil {
		return nil, err
	}

	decisions, err := r.Evaluate(ctx, r.db, event, asOf, audience)
	if err != nil {
		return nil, err
	}

	available := make([]Decision, 0, len(decisions))
	for _, d := range decisions {
		if d.Purchasable {
			available = append(available, d)
		}
	}
	return available, nil
}

// Evaluate returns a decision for every tier of the event. Pass the write
// transaction when the result decides a write.
func (r *Resolver) Evaluate(ctx context.Context, db *gorm.DB, event *events.Event, asOf time.Time, audience string) ([]Decision, error) {
	if !event.AdvancedTicketing {
		return nil, nil
	}

	list, err := events.ListTiers(db.WithContext(ctx), event.ID)
	if err != nil {
		return nil, err
	}

	states := make([]State, 0, len(list))
	for i := range list {
		n, err := r.ledger.Available(ctx, db, capacity.TierScope(&list[i]))
		if err != nil {
			return nil, err
		}
		states = append(states, State{Tier: list[i], Available: n})
	}
	return Cascade(states, asOf.UTC(), audience), nil
}
