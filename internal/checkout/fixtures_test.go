package checkout

import (
	"testing"
	"time"

	"eventreg/internal/capacity"
	"eventreg/internal/events"
	"eventreg/internal/shared/database/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type registrationRow struct {
	ID      uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventID uuid.UUID  `gorm:"type:uuid"`
	TierID  *uuid.UUID `gorm:"type:uuid"`
}

func (registrationRow) TableName() string { return capacity.TableRegistrations }

type registrationSubEventRow struct {
	RegistrationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubEventID     uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (registrationSubEventRow) TableName() string { return capacity.TableRegistrationSubEvents }

type reservationRow struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventID   uuid.UUID  `gorm:"type:uuid"`
	TierID    *uuid.UUID `gorm:"type:uuid"`
	State     string
	ExpiresAt time.Time
}

func (reservationRow) TableName() string { return capacity.TableReservations }

type reservationSubEventRow struct {
	ReservationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubEventID    uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (reservationSubEventRow) TableName() string { return capacity.TableReservationSubEvents }

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testdb.Open(t,
		&events.Event{}, &events.TicketTier{}, &events.SubEvent{},
		&registrationRow{}, &registrationSubEventRow{}, &reservationRow{}, &reservationSubEventRow{},
	)
}

func fixedLedger() *capacity.Ledger {
	return capacity.NewLedger(capacity.WithClock(func() time.Time { return testNow }))
}

// conference is an advanced event with two cascading tiers and three sub-events.
type conference struct {
	event       *events.Event
	early       events.TicketTier
	regular     events.TicketTier
	workshop    events.SubEvent
	dinner      events.SubEvent
	masterclass events.SubEvent
}

func seedConference(t *testing.T, db *gorm.DB, earlyCapacity int) *conference {
	t.Helper()
	regularStart := testNow.Add(7 * 24 * time.Hour)

	event := &events.Event{
		Name:              "DevConf",
		StartsAt:          testNow.Add(30 * 24 * time.Hour),
		Capacity:          100,
		Fee:               25,
		Currency:          "CAD",
		AdvancedTicketing: true,
		HasSubEvents:      true,
		Tiers: []events.TicketTier{
			{Name: "Early Bird", Price: 50, Capacity: earlyCapacity, SortOrder: 1},
			{Name: "Regular", Price: 80, Capacity: 50, SortOrder: 2, StartDate: &regularStart},
		},
		SubEvents: []events.SubEvent{
			{Name: "Workshop", Price: 10, Capacity: 20, Combinable: true},
			{Name: "Dinner", Price: 30, Capacity: 20, Combinable: true},
			{Name: "Masterclass", Price: 15, Capacity: 5, Standalone: true},
		},
	}
	require.NoError(t, db.Create(event).Error)

	c := &conference{event: event}
	for _, tier := range event.Tiers {
		switch tier.Name {
		case "Early Bird":
			c.early = tier
		case "Regular":
			c.regular = tier
		}
	}
	for _, sub := range event.SubEvents {
		switch sub.Name {
		case "Workshop":
			c.workshop = sub
		case "Dinner":
			c.dinner = sub
		case "Masterclass":
			c.masterclass = sub
		}
	}
	return c
}

func registerOn(t *testing.T, db *gorm.DB, eventID uuid.UUID, tierID *uuid.UUID, subIDs ...uuid.UUID) {
	t.Helper()
	row := registrationRow{ID: uuid.New(), EventID: eventID, TierID: tierID}
	require.NoError(t, db.Create(&row).Error)
	for _, id := range subIDs {
		require.NoError(t, db.Create(&registrationSubEventRow{RegistrationID: row.ID, SubEventID: id}).Error)
	}
}
