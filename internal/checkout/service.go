package checkout

import (
	"context"
	"strings"
	"time"

	"eventreg/internal/capacity"
	"eventreg/internal/events"
	"eventreg/internal/shared/constants"
	"eventreg/internal/tiers"
	"eventreg/pkg/cache"
	"eventreg/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AvailabilityService answers the read-only capacity questions. Answers are
// snapshots; writes always recheck under the event lock.
type AvailabilityService interface {
	Capacity(ctx context.Context, eventID uuid.UUID) (*CapacityResponse, error)
	TicketOptions(ctx context.Context, eventID uuid.UUID, audience string, at *time.Time) (*TicketOptionsResponse, error)

	// Invalidate drops cached answers for an event after any seat changes hands
	Invalidate(ctx context.Context, eventID uuid.UUID)
}

type availabilityService struct {
	db       *gorm.DB
	ledger   *capacity.Ledger
	resolver *tiers.Resolver
	cache    cache.Service
	ttl      time.Duration
	log      *logger.Logger
}

// NewAvailabilityService builds the service. cache may be nil, in which case
// every call reads the database.
func NewAvailabilityService(db *gorm.DB, ledger *capacity.Ledger, resolver *tiers.Resolver, c cache.Service, ttl time.Duration, log *logger.Logger) AvailabilityService {
	return &availabilityService{
		db:       db,
		ledger:   ledger,
		resolver: resolver,
		cache:    c,
		ttl:      ttl,
		log:      log.WithComponent("availability"),
	}
}

func (s *availabilityService) Capacity(ctx context.Context, eventID uuid.UUID) (*CapacityResponse, error) {
	if s.cache == nil {
		return s.loadCapacity(ctx, eventID)
	}

	var out CapacityResponse
	err := s.cache.GetOrSet(ctx, constants.CapacityCacheKey(eventID.String()), s.ttl, &out, func() (interface{}, error) {
		return s.loadCapacity(ctx, eventID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *availabilityService) loadCapacity(ctx context.Context, eventID uuid.UUID) (*CapacityResponse, error) {
	db := s.db.WithContext(ctx)
	event, err := events.Find(db, eventID)
	if err != nil {
		return nil, err
	}
	tierList, err := events.ListTiers(db, eventID)
	if err != nil {
		return nil, err
	}
	subs, err := events.ListSubEvents(db, eventID)
	if err != nil {
		return nil, err
	}

	eventUsage, err := s.ledger.Usage(ctx, s.db, capacity.EventScope(event))
	if err != nil {
		return nil, err
	}

	tierScopes := make([]capacity.Scope, 0, len(tierList))
	for i := range tierList {
		tierScopes = append(tierScopes, capacity.TierScope(&tierList[i]))
	}
	tierUsage, err := s.ledger.Snapshot(ctx, s.db, tierScopes...)
	if err != nil {
		return nil, err
	}

	subScopes := make([]capacity.Scope, 0, len(subs))
	for i := range subs {
		subScopes = append(subScopes, capacity.SubEventScope(&subs[i]))
	}
	subUsage, err := s.ledger.Snapshot(ctx, s.db, subScopes...)
	if err != nil {
		return nil, err
	}

	return &CapacityResponse{
		EventID:   eventID,
		Event:     eventUsage,
		Tiers:     tierUsage,
		SubEvents: subUsage,
	}, nil
}

// TicketOptions lists what can be bought. Only the live view (no at) is
// cached; historical and future views are computed on demand.
func (s *availabilityService) TicketOptions(ctx context.Context, eventID uuid.UUID, audience string, at *time.Time) (*TicketOptionsResponse, error) {
	audience = strings.ToLower(strings.TrimSpace(audience))
	if at != nil || s.cache == nil {
		return s.loadOptions(ctx, eventID, audience, at)
	}

	var out TicketOptionsResponse
	key := constants.TicketOptionsCacheKey(eventID.String(), audience)
	err := s.cache.GetOrSet(ctx, key, s.ttl, &out, func() (interface{}, error) {
		return s.loadOptions(ctx, eventID, audience, nil)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *availabilityService) loadOptions(ctx context.Context, eventID uuid.UUID, audience string, at *time.Time) (*TicketOptionsResponse, error) {
	asOf := s.ledger.Now()
	if at != nil {
		asOf = at.UTC()
	}

	event, err := events.Find(s.db.WithContext(ctx), eventID)
	if err != nil {
		return nil, err
	}

	decisions, err := s.resolver.ListAvailable(ctx, eventID, asOf, audience)
	if err != nil {
		return nil, err
	}

	out := &TicketOptionsResponse{
		EventID:   eventID,
		Audience:  audience,
		AsOf:      asOf,
		Fee:       event.Fee,
		Currency:  event.Currency,
		Tiers:     make([]TierOption, 0, len(decisions)),
		SubEvents: []SubEventOption{},
	}
	for _, d := range decisions {
		out.Tiers = append(out.Tiers, TierOption{
			ID:          d.Tier.ID,
			Name:        d.Tier.Name,
			Price:       d.Tier.Price,
			Available:   d.Available,
			OpenedEarly: d.OpenedEarly,
			EndDate:     d.Tier.EndDate,
		})
	}

	if !event.HasSubEvents {
		return out, nil
	}
	subs, err := events.ListSubEvents(s.db.WithContext(ctx), eventID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		n, err := s.ledger.Available(ctx, s.db, capacity.SubEventScope(&subs[i]))
		if err != nil {
			return nil, err
		}
		out.SubEvents = append(out.SubEvents, SubEventOption{
			ID:         subs[i].ID,
			Name:       subs[i].Name,
			Price:      subs[i].Price,
			Available:  n,
			Combinable: subs[i].Combinable,
			Standalone: subs[i].Standalone,
		})
	}
	return out, nil
}

func (s *availabilityService) Invalidate(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	id := eventID.String()
	if err := s.cache.Delete(ctx, constants.CapacityCacheKey(id)); err != nil {
		s.log.WithError(err).Warn("failed to drop capacity cache", "event_id", id)
	}
	if err := s.cache.DeletePattern(ctx, constants.TicketOptionsCachePattern(id)); err != nil {
		s.log.WithError(err).Warn("failed to drop ticket options cache", "event_id", id)
	}
}
