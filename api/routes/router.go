// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"eventreg/internal/capacity"
	"eventreg/internal/checkout"
	"eventreg/internal/credits"
	"eventreg/internal/events"
	"eventreg/internal/notifications"
	"eventreg/internal/payments"
	"eventreg/internal/refunds"
	"eventreg/internal/registrations"
	"eventreg/internal/reservations"
	"eventreg/internal/shared/config"
	"eventreg/internal/shared/database"
	"eventreg/internal/shared/middleware"
	"eventreg/internal/tiers"
	"eventreg/pkg/cache"
	"eventreg/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Router builds the service graph and mounts it on the engine
type Router struct {
	config   *config.Config
	db       *database.DB
	notifier *notifications.Notifier
	gateway  payments.Gateway
	log      *logger.Logger

	// Background workers, started by main after SetupRoutes
	Reaper *reservations.Reaper
	Retry  *refunds.RetryProcessor
}

type Option func(*Router)

// WithNotifier enables registration and refund notices
func WithNotifier(n *notifications.Notifier) Option {
	return func(r *Router) { r.notifier = n }
}

// WithGateway replaces the Square client
func WithGateway(g payments.Gateway) Option {
	return func(r *Router) { r.gateway = g }
}

func NewRouter(cfg *config.Config, db *database.DB, log *logger.Logger, opts ...Option) *Router {
	r := &Router{config: cfg, db: db, log: log}
	for _, opt := range opts {
		opt(r)
	}
	if r.gateway == nil {
		r.gateway = payments.NewSquareClient(payments.SquareConfig{
			BaseURL:     cfg.SquareBaseURL(),
			AccessToken: cfg.Square.AccessToken,
			Version:     cfg.Square.Version,
			Timeout:     cfg.Square.Timeout,
		}, log)
	}
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	pg := r.db.PostgreSQL
	admin := middleware.AdminOnly(r.config.JWT.Secret)

	ledger := capacity.NewLedger()
	resolver := tiers.NewResolver(pg, ledger)
	validator := checkout.NewValidator(resolver, ledger)

	var cacheService cache.Service
	if r.db.Redis != nil {
		cacheService = cache.NewService(r.db.Redis)
	}
	availability := checkout.NewAvailabilityService(pg, ledger, resolver, cacheService, r.config.Redis.AvailabilityTTL, r.log)

	creditService := credits.NewService(pg, r.log)

	compensator := refunds.NewCompensator(pg, r.gateway, r.refundNotifier(), refunds.CompensatorConfig{
		Timeout:     r.config.Compensation.Timeout,
		MaxAttempts: r.config.Compensation.MaxAttempts,
		BaseBackoff: r.config.Compensation.BaseBackoff,
	}, r.log)
	r.Retry = refunds.NewRetryProcessor(pg, compensator, r.config.Compensation.RetryInterval, r.config.Compensation.BatchSize, r.log)

	store := reservations.NewStore(pg, validator, ledger, r.config.Reservation.TTL, r.log,
		reservations.WithCredits(creditService),
		reservations.WithAvailability(availability),
	)
	r.Reaper = reservations.NewReaper(store, reservations.ReaperConfig{
		Interval:  r.config.Reservation.ReaperInterval,
		Retention: r.config.Reservation.Retention,
		BatchSize: r.config.Reservation.ReaperBatch,
	}, r.log)

	registrationRepo := registrations.NewRepository(pg)
	registrationService := registrations.NewService(registrations.Deps{
		DB:           pg,
		Repo:         registrationRepo,
		Validator:    validator,
		Reservations: store,
		Gateway:      r.gateway,
		Compensator:  compensator,
		Credits:      creditService,
		Notifier:     r.registrationNotifier(),
		Availability: availability,
		Currency:     r.config.Square.Currency,
		Log:          r.log,
	})
	refundService := refunds.NewService(pg, compensator,
		registrations.NewRefundLookup(registrationRepo, registrationService),
		r.config.Square.Currency, r.log)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		events.SetupEventRoutes(api, events.NewController(events.NewService(events.NewRepository(pg), r.config.Square.Currency)), admin)
		checkout.SetupAvailabilityRoutes(api, checkout.NewController(availability))
		reservations.SetupReservationRoutes(api, reservations.NewController(store))
		registrations.SetupRegistrationRoutes(api, registrations.NewController(registrationService))
		refunds.SetupRefundRoutes(api, refunds.NewController(refundService), admin)
		credits.SetupCreditRoutes(api, credits.NewController(creditService), admin)
	}
}

// The notifier is optional; a nil pointer must not become a non-nil interface.

func (r *Router) registrationNotifier() registrations.Notifier {
	if r.notifier == nil {
		return nil
	}
	return r.notifier
}

func (r *Router) refundNotifier() refunds.Notifier {
	if r.notifier == nil {
		return nil
	}
	return r.notifier
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now().UTC(),
				"service":   "eventreg",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "eventreg",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now().UTC(),
		})
	})
}
