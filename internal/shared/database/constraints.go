package database

import (
	"fmt"

	"gorm.io/gorm"
)

// postgresConstraints are the guarantees struct tags cannot express
var postgresConstraints = []struct {
	name string
	sql  string
}{
	{
		// At most one live hold per user and event
		name: "idx_reservation_one_live_hold",
		sql: `CREATE UNIQUE INDEX IF NOT EXISTS idx_reservation_one_live_hold
			ON reservations (user_id, event_id) WHERE state = 'HELD'`,
	},
	{
		// Serves the capacity count of live holds
		name: "idx_reservation_live_by_event",
		sql: `CREATE INDEX IF NOT EXISTS idx_reservation_live_by_event
			ON reservations (event_id, expires_at) WHERE state = 'HELD'`,
	},
	{
		name: "idx_compensation_failures_due",
		sql: `CREATE INDEX IF NOT EXISTS idx_compensation_failures_due
			ON compensation_failures (next_attempt_at) WHERE status = 'PENDING'`,
	},
	{
		// One open refund request per registration
		name: "idx_refund_request_one_pending",
		sql: `CREATE UNIQUE INDEX IF NOT EXISTS idx_refund_request_one_pending
			ON refund_requests (registration_id) WHERE status = 'PENDING'`,
	},
	{
		// Payments of registrations written before consumed_payments existed
		name: "backfill_consumed_payments",
		sql: `INSERT INTO consumed_payments (payment_id, registration_id, event_id, user_id, amount, consumed_at)
			SELECT payment_id, id, event_id, user_id, final_price, registered_at
			FROM event_registrations WHERE payment_id IS NOT NULL AND payment_id <> ''
			ON CONFLICT (payment_id) DO NOTHING`,
	},
}

// MigrateConstraints adds the partial indexes the engine relies on. Other
// dialects (the sqlite test database) skip them.
func MigrateConstraints(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, c := range postgresConstraints {
		if err := db.Exec(c.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}
	return nil
}
