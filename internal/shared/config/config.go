package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string        `env:"PORT" envDefault:"8080"`
	GinMode        string        `env:"GIN_MODE" envDefault:"debug" validate:"oneof=debug release test"`
	APIVersion     string        `env:"API_VERSION" envDefault:"v1"`
	APIPrefix      string        `env:"API_PREFIX" envDefault:"/api"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes int           `env:"MAX_HEADER_BYTES" envDefault:"1048576"`

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Reservation  ReservationConfig
	Compensation CompensationConfig
	Square       SquareConfig
	Kafka        KafkaConfig
	Email        EmailConfig
	Telemetry    TelemetryConfig

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	Name     string `env:"DB_NAME" envDefault:"eventreg_db"`
	User     string `env:"DB_USER" envDefault:"eventreg_user"`
	Password string `env:"DB_PASSWORD" envDefault:"eventreg_password"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// DSN wins over the individual fields when set
	DSN string `env:"DATABASE_URL"`

	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Addr     string

	// Display reads (capacity, ticket options) are cached this long
	AvailabilityTTL time.Duration `env:"REDIS_AVAILABILITY_TTL" envDefault:"15s"`
}

// JWTConfig holds JWT configuration for admin routes
type JWTConfig struct {
	Secret string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled          bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	WindowDuration   time.Duration `env:"RATE_LIMIT_WINDOW_DURATION" envDefault:"60s"`
	DefaultRequests  int           `env:"RATE_LIMIT_DEFAULT_REQUESTS" envDefault:"60"`
	PublicRequests   int           `env:"RATE_LIMIT_PUBLIC_REQUESTS" envDefault:"100"`
	CheckoutRequests int           `env:"RATE_LIMIT_CHECKOUT_REQUESTS" envDefault:"20"`
	AdminRequests    int           `env:"RATE_LIMIT_ADMIN_REQUESTS" envDefault:"200"`
	WhitelistedIPs   []string      `env:"RATE_LIMIT_WHITELISTED_IPS" envSeparator:","`
}

// ReservationConfig controls seat holds
type ReservationConfig struct {
	TTL            time.Duration `env:"RESERVATION_TTL" envDefault:"15m" validate:"gt=0"`
	ReaperInterval time.Duration `env:"RESERVATION_REAPER_INTERVAL" envDefault:"5m"`
	Retention      time.Duration `env:"RESERVATION_RETENTION" envDefault:"168h"`
	ReaperBatch    int           `env:"RESERVATION_REAPER_BATCH" envDefault:"500"`
}

// CompensationConfig controls automatic refunds and their retry queue
type CompensationConfig struct {
	Timeout       time.Duration `env:"COMPENSATION_TIMEOUT" envDefault:"8s" validate:"gt=0"`
	RetryInterval time.Duration `env:"COMPENSATION_RETRY_INTERVAL" envDefault:"1m"`
	MaxAttempts   int           `env:"COMPENSATION_MAX_ATTEMPTS" envDefault:"8" validate:"gte=1"`
	BaseBackoff   time.Duration `env:"COMPENSATION_BASE_BACKOFF" envDefault:"30s"`
	BatchSize     int           `env:"COMPENSATION_BATCH_SIZE" envDefault:"50"`
}

// SquareConfig holds payment gateway configuration
type SquareConfig struct {
	Environment string        `env:"SQUARE_ENVIRONMENT" envDefault:"sandbox" validate:"oneof=sandbox production"`
	AccessToken string        `env:"SQUARE_ACCESS_TOKEN"`
	BaseURL     string        `env:"SQUARE_BASE_URL"`
	Version     string        `env:"SQUARE_VERSION" envDefault:"2024-07-17"`
	Timeout     time.Duration `env:"SQUARE_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	Currency    string        `env:"PAYMENT_CURRENCY" envDefault:"CAD" validate:"len=3"`
}

// KafkaConfig holds notification broker configuration
type KafkaConfig struct {
	Enabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"eventreg.notifications"`
	GroupID string   `env:"KAFKA_GROUP_ID" envDefault:"eventreg-notification-workers"`
	Workers int      `env:"KAFKA_WORKERS" envDefault:"2"`
}

// EmailConfig holds email configuration
type EmailConfig struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	FromEmail    string `env:"FROM_EMAIL" envDefault:"noreply@eventreg.local"`
	FromName     string `env:"FROM_NAME" envDefault:"Event Registration"`
}

// TelemetryConfig holds OpenTelemetry tracing configuration
type TelemetryConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"true"`
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"eventreg"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Build composite values
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	}
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port
	cfg.Square.Currency = strings.ToUpper(cfg.Square.Currency)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the values production cannot run without
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.IsProduction() {
		var missing []string
		if c.Square.AccessToken == "" {
			missing = append(missing, "SQUARE_ACCESS_TOKEN")
		}
		if c.JWT.Secret == "" || c.JWT.Secret == "change-me-in-production" {
			missing = append(missing, "JWT_SECRET")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
		}
	}
	return nil
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}

// SquareBaseURL resolves the gateway endpoint for the configured environment
func (c *Config) SquareBaseURL() string {
	if c.Square.BaseURL != "" {
		return strings.TrimRight(c.Square.BaseURL, "/")
	}
	if c.Square.Environment == "production" {
		return "https://connect.squareup.com/v2"
	}
	return "https://connect.squareupsandbox.com/v2"
}
