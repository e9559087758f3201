package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"eventreg/internal/credits"
	"eventreg/internal/events"
	"eventreg/internal/shared/config"
	"eventreg/internal/shared/database"
	"eventreg/pkg/logger"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// Fixed ids so a seeded database can be exercised with copy-pasted requests
var (
	adminID = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	aliceID = uuid.MustParse("00000000-0000-4000-8000-000000000002")
	bobID   = uuid.MustParse("00000000-0000-4000-8000-000000000003")
)

type Seeder struct {
	db      *database.DB
	events  events.Service
	credits *credits.Service
	cfg     *config.Config
}

func main() {
	clean := flag.Bool("clean", true, "truncate every table before seeding")
	flag.Parse()

	fmt.Println("🌱 Starting eventreg database seeder...")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	appLogger := logger.New(cfg.LogLevel)

	db, err := database.InitDB(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{
		db:      db,
		events:  events.NewService(events.NewRepository(db.PostgreSQL), cfg.Square.Currency),
		credits: credits.NewService(db.PostgreSQL, appLogger),
		cfg:     cfg,
	}

	if *clean {
		fmt.Println("\n🧹 Cleaning database...")
		if err := seeder.CleanDatabase(); err != nil {
			log.Fatalf("Failed to clean database: %v", err)
		}
	}

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(ctx); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	token, err := seeder.AdminToken(24 * time.Hour)
	if err != nil {
		log.Fatalf("Failed to mint admin token: %v", err)
	}
	fmt.Printf("\n🔑 Admin bearer token (24h):\n%s\n", token)
	fmt.Printf("\n👤 Users: alice=%s bob=%s\n", aliceID, bobID)
	fmt.Println("\n🎉 Seeding completed!")
}

// CleanDatabase truncates every table the service owns
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"credit_transactions",
		"refund_requests",
		"compensation_failures",
		"refund_records",
		"consumed_payments",
		"registration_sub_events",
		"event_registrations",
		"reservation_sub_events",
		"reservations",
		"sub_events",
		"ticket_tiers",
		"events",
	}

	return s.db.PostgreSQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll creates a spread of events covering every ticketing mode
func (s *Seeder) SeedAll(ctx context.Context) error {
	now := time.Now().UTC()
	inDays := func(d int) *time.Time {
		t := now.AddDate(0, 0, d)
		return &t
	}

	seeds := []events.CreateEventRequest{
		{
			Name:        "Community Meetup",
			Description: "Free evening meetup with a tiny room",
			StartsAt:    now.AddDate(0, 0, 14),
			Capacity:    2,
		},
		{
			Name:           "Go Workshop",
			Description:    "Hands-on workshop with a flat fee",
			StartsAt:       now.AddDate(0, 0, 21),
			Capacity:       30,
			Fee:            25,
			RefundDeadline: inDays(14),
		},
		{
			Name:              "Annual Conference",
			Description:       "Tiered pricing with workshops on the side",
			StartsAt:          now.AddDate(0, 1, 0),
			Capacity:          200,
			Fee:               150,
			AdvancedTicketing: true,
			HasSubEvents:      true,
			RefundDeadline:    inDays(20),
			Tiers: []events.CreateTierRequest{
				{Name: "Early Bird", Price: 99, Capacity: 3, SortOrder: 1, TargetAudience: "all", EndDate: inDays(10)},
				{Name: "Regular", Price: 149, Capacity: 150, SortOrder: 2, TargetAudience: "all", StartDate: inDays(7)},
				{Name: "Student", Price: 49, Capacity: 20, SortOrder: 3, TargetAudience: "students"},
			},
			SubEvents: []events.CreateSubEventRequest{
				{Name: "Kubernetes Deep Dive", Price: 40, Capacity: 25, Combinable: true},
				{Name: "Testing Masterclass", Price: 35, Capacity: 25, Combinable: true},
				{Name: "Speaker Dinner", Price: 80, Capacity: 10, Standalone: true},
			},
		},
	}

	for _, req := range seeds {
		ev, err := s.events.CreateEvent(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to seed event %q: %w", req.Name, err)
		}
		fmt.Printf("  🎫 %s (%s) capacity=%d fee=%.2f %s\n", ev.Name, ev.ID, ev.Capacity, ev.Fee, ev.Currency)
	}

	for _, id := range []uuid.UUID{aliceID, bobID} {
		if _, err := s.credits.Grant(ctx, id, credits.GrantRequest{Amount: 20, Reason: "welcome credit"}, adminID.String()); err != nil {
			return fmt.Errorf("failed to grant credits to %s: %w", id, err)
		}
	}
	fmt.Println("  💳 Granted 20.00 credits to alice and bob")

	// Cached availability would outlive the truncate
	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}
	return nil
}

// AdminToken mints an access token the admin routes accept
func (s *Seeder) AdminToken(ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": adminID.String(),
		"email":   "admin@eventreg.local",
		"role":    "admin",
		"type":    "access",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.Secret))
}
