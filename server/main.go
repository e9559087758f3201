package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventreg/api/routes"
	"eventreg/internal/notifications"
	"eventreg/internal/shared/config"
	"eventreg/internal/shared/database"
	"eventreg/pkg/logger"
	"eventreg/pkg/ratelimit"
	"eventreg/pkg/telemetry"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	bootLogger := logger.New("info")

	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			bootLogger.Info("Production environment: using container environment variables")
		} else {
			bootLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		bootLogger.Info("Development environment: loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		appLogger.Error("Failed to initialize tracing, continuing without it", slog.Any("error", err))
	}

	db, err := database.InitDB(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}

	var opts []routes.Option
	var notificationService *notifications.Service
	if cfg.Kafka.Enabled {
		notificationService, err = notifications.NewService(cfg.Kafka, cfg.Email, appLogger)
		if err != nil {
			appLogger.Error("Failed to initialize notification service", slog.Any("error", err))
			appLogger.Info("Continuing without notifications")
		} else {
			if err := notificationService.Start(ctx); err != nil {
				appLogger.Error("Failed to start notification consumers", slog.Any("error", err))
			}
			opts = append(opts, routes.WithNotifier(notificationService.Notifier()))
			appLogger.Info("Notification service started", slog.Int("workers", cfg.Kafka.Workers))
		}
	} else {
		appLogger.Info("Kafka disabled, notifications off")
	}

	appRouter := routes.NewRouter(cfg, db, appLogger, opts...)
	engine := setupEngine(cfg, db, appLogger)
	appRouter.SetupRoutes(engine)

	appRouter.Reaper.Start(ctx)
	appRouter.Retry.Start(ctx)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", cfg.GetAPIBasePath()),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appRouter.Reaper.Stop()
	appRouter.Retry.Stop()

	if notificationService != nil {
		if err := notificationService.Stop(); err != nil {
			appLogger.Error("Error stopping notification service", slog.Any("error", err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLogger.Error("Error flushing traces", slog.Any("error", err))
	}
	if err := db.Close(); err != nil {
		appLogger.Error("Error closing databases", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupEngine(cfg *config.Config, db *database.DB, appLogger *logger.Logger) *gin.Engine {
	engine := gin.New()

	engine.Use(logger.RequestMiddleware(appLogger), gin.Recovery(), telemetry.Middleware())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "traceparent"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.RateLimit.Enabled && db.Redis != nil {
		limiter := ratelimit.NewRateLimiter(db.Redis, ratelimit.Config{
			Enabled:          cfg.RateLimit.Enabled,
			WindowDuration:   cfg.RateLimit.WindowDuration,
			DefaultRequests:  cfg.RateLimit.DefaultRequests,
			PublicRequests:   cfg.RateLimit.PublicRequests,
			CheckoutRequests: cfg.RateLimit.CheckoutRequests,
			AdminRequests:    cfg.RateLimit.AdminRequests,
			WhitelistedIPs:   cfg.RateLimit.WhitelistedIPs,
		})
		engine.Use(ratelimit.Middleware(limiter, appLogger))
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("checkout_requests", cfg.RateLimit.CheckoutRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	return engine
}
