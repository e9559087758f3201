// Package capacity counts seats consumed against each capacity pool.
//
// A seat is consumed by a registration or by a HELD reservation whose expiry
// lies in the future. Expired holds are excluded by predicate, so correctness
// never depends on a sweeper having run.
package capacity

import (
	"context"
	"fmt"
	"time"

	"eventreg/internal/events"
	"eventreg/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tables the ledger counts over. The owning packages use the same names.
const (
	TableRegistrations         = "event_registrations"
	TableRegistrationSubEvents = "registration_sub_events"
	TableReservations          = "reservations"
	TableReservationSubEvents  = "reservation_sub_events"

	// HeldState is the only reservation state that consumes a seat.
	HeldState = "HELD"
)

type Kind string

const (
	KindEvent    Kind = "event"
	KindTier     Kind = "tier"
	KindSubEvent Kind = "sub_event"
)

// Scope is one capacity pool.
type Scope struct {
	Kind     Kind      `json:"kind"`
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Capacity int       `json:"capacity"`
}

func EventScope(e *events.Event) Scope {
	return Scope{Kind: KindEvent, ID: e.ID, Name: e.Name, Capacity: e.Capacity}
}

func TierScope(t *events.TicketTier) Scope {
	return Scope{Kind: KindTier, ID: t.ID, Name: t.Name, Capacity: t.Capacity}
}

func SubEventScope(s *events.SubEvent) Scope {
	return Scope{Kind: KindSubEvent, ID: s.ID, Name: s.Name, Capacity: s.Capacity}
}

// Usage is the consumption of one scope at a point in time.
type Usage struct {
	Scope      Scope `json:"scope"`
	Registered int64 `json:"registered"`
	Held       int64 `json:"held"`
	Available  int   `json:"available"`
}

type Ledger struct {
	now func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the time used to decide which holds have expired.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now is the ledger's clock, shared with callers that stamp expiries.
func (l *Ledger) Now() time.Time {
	return l.now().UTC()
}

// Available returns capacity minus registrations and live holds, never below zero.
// Pass the write transaction when the answer decides a write.
func (l *Ledger) Available(ctx context.Context, db *gorm.DB, scope Scope) (int, error) {
	u, err := l.Usage(ctx, db, scope)
	if err != nil {
		return 0, err
	}
	return u.Available, nil
}

func (l *Ledger) Usage(ctx context.Context, db *gorm.DB, scope Scope) (Usage, error) {
	db = db.WithContext(ctx)
	now := l.Now()

	var registered, held int64
	var err error

	switch scope.Kind {
	case KindEvent:
		err = db.Table(TableRegistrations).Where("event_id = ?", scope.ID).Count(&registered).Error
		if err == nil {
			err = db.Table(TableReservations).
				Where("event_id = ? AND state = ? AND expires_at > ?", scope.ID, HeldState, now).
				Count(&held).Error
		}
	case KindTier:
		err = db.Table(TableRegistrations).Where("tier_id = ?", scope.ID).Count(&registered).Error
		if err == nil {
			err = db.Table(TableReservations).
				Where("tier_id = ? AND state = ? AND expires_at > ?", scope.ID, HeldState, now).
				Count(&held).Error
		}
	case KindSubEvent:
		err = db.Table(TableRegistrationSubEvents).Where("sub_event_id = ?", scope.ID).Count(&registered).Error
		if err == nil {
			err = db.Table(TableReservationSubEvents+" AS rse").
				Joins("JOIN "+TableReservations+" r ON r.id = rse.reservation_id").
				Where("rse.sub_event_id = ? AND r.state = ? AND r.expires_at > ?", scope.ID, HeldState, now).
				Count(&held).Error
		}
	default:
		return Usage{}, fmt.Errorf("unknown capacity scope %q", scope.Kind)
	}
	if err != nil {
		return Usage{}, fmt.Errorf("failed to count %s %s: %w", scope.Kind, scope.ID, err)
	}

	available := scope.Capacity - int(registered+held)
	if available < 0 {
		available = 0
	}
	return Usage{Scope: scope, Registered: registered, Held: held, Available: available}, nil
}

// Snapshot returns usage for several scopes. Display only.
func (l *Ledger) Snapshot(ctx context.Context, db *gorm.DB, scopes ...Scope) ([]Usage, error) {
	out := make([]Usage, 0, len(scopes))
	for _, s := range scopes {
		u, err := l.Usage(ctx, db, s)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Require fails with CapacityExceeded naming the first scope that has no seat
// left. It must run inside the transaction that holds the event row lock.
func (l *Ledger) Require(ctx context.Context, tx *gorm.DB, scopes ...Scope) error {
	for _, s := range scopes {
		n, err := l.Available(ctx, tx, s)
		if err != nil {
			return err
		}
		if n < 1 {
			return apperrors.New(apperrors.CodeCapacityExceeded, soldOutMessage(s))
		}
	}
	return nil
}

func soldOutMessage(s Scope) string {
	switch s.Kind {
	case KindTier:
		return fmt.Sprintf("ticket tier %q is sold out", s.Name)
	case KindSubEvent:
		return fmt.Sprintf("sub-event %q is sold out", s.Name)
	default:
		return "event is sold out"
	}
}
