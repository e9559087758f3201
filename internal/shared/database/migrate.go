package database

import (
	"eventreg/internal/credits"
	"eventreg/internal/events"
	"eventreg/internal/refunds"
	"eventreg/internal/registrations"
	"eventreg/internal/reservations"

	"gorm.io/gorm"
)

// Models lists every table the service owns, parents first
func Models() []interface{} {
	return []interface{}{
		&events.Event{},
		&events.TicketTier{},
		&events.SubEvent{},
		&reservations.Reservation{},
		&reservations.ReservationSubEvent{},
		&registrations.Registration{},
		&registrations.RegistrationSubEvent{},
		&registrations.ConsumedPayment{},
		&refunds.RefundRecord{},
		&refunds.CompensationFailure{},
		&refunds.RefundRequest{},
		&credits.CreditTransaction{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	return MigrateConstraints(db)
}
