package events

import (
	"context"
	"errors"
	"fmt"

	"eventreg/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	GetWithOptions(ctx context.Context, id uuid.UUID) (*Event, error)
	List(ctx context.Context, limit, offset int) ([]Event, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create inserts the event together with its tiers and sub-events
func (r *repository) Create(ctx context.Context, event *Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	return Find(r.db.WithContext(ctx), id)
}

func (r *repository) GetWithOptions(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB { return db.Order(TierOrder) }).
		Preload("SubEvents", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Event, int64, error) {
	var (
		list  []Event
		total int64
	)
	base := r.db.WithContext(ctx).Model(&Event{})
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := base.Order("starts_at ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// TierOrder is the cascade order: explicit sort order first, then price.
const TierOrder = "sort_order ASC, price ASC, name ASC"

// The helpers below take whatever handle the caller holds, so they can run
// inside a registration or reservation transaction.

// Find loads an event without relations
func Find(db *gorm.DB, id uuid.UUID) (*Event, error) {
	var event Event
	if err := db.Where("id = ?", id).First(&event).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

// LockForUpdate loads the event row with SELECT ... FOR UPDATE. The event row
// is the lock root for every capacity scope of the event, so holding it
// serializes all reservation and registration writes for that event.
func LockForUpdate(tx *gorm.DB, id uuid.UUID) (*Event, error) {
	var event Event
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

// ListTiers returns the event's tiers in cascade order
func ListTiers(db *gorm.DB, eventID uuid.UUID) ([]TicketTier, error) {
	var tiers []TicketTier
	err := db.Where("event_id = ?", eventID).Order(TierOrder).Find(&tiers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	return tiers, nil
}

// ListSubEvents returns the event's sub-events
func ListSubEvents(db *gorm.DB, eventID uuid.UUID) ([]SubEvent, error) {
	var subs []SubEvent
	err := db.Where("event_id = ?", eventID).Order("name ASC").Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sub-events: %w", err)
	}
	return subs, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrEventNotFound
	}
	return fmt.Errorf("failed to load event: %w", err)
}
