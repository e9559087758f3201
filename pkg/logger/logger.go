package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout at the given level
func New(level string) *Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter creates a logger writing to w. Text output in gin debug mode, JSON otherwise.
func NewWithWriter(w io.Writer, level string) *Logger {
	lvl := getLogLevel(level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent tags every record with the emitting component
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", name))}
}

// WithUserID adds user ID to logger context
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("user_id", userID))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs an HTTP error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// RequestMiddleware logs every request after it is served
func RequestMiddleware(l *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}

// Business logic logging methods

// LogReservationHeld logs a new seat hold
func (l *Logger) LogReservationHeld(ctx context.Context, reservationID, eventID, userID string, expiresAt time.Time) {
	l.Logger.InfoContext(ctx,
		"Reservation Held",
		slog.String("reservation_id", reservationID),
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
		slog.Time("expires_at", expiresAt),
	)
}

// LogReservationReleased logs an explicit cancellation of a hold
func (l *Logger) LogReservationReleased(ctx context.Context, reservationID, userID string) {
	l.Logger.InfoContext(ctx,
		"Reservation Released",
		slog.String("reservation_id", reservationID),
		slog.String("user_id", userID),
	)
}

// LogRegistrationCreated logs when a registration is written
func (l *Logger) LogRegistrationCreated(ctx context.Context, registrationID, eventID, userID string, finalPrice float64) {
	l.Logger.InfoContext(ctx,
		"Registration Created",
		slog.String("registration_id", registrationID),
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
		slog.Float64("final_price", finalPrice),
	)
}

// LogRegistrationCancelled logs when a registration is deleted
func (l *Logger) LogRegistrationCancelled(ctx context.Context, eventID, userID string) {
	l.Logger.InfoContext(ctx,
		"Registration Cancelled",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
}

// LogCompensation logs a refund issued for a charge without a registration
func (l *Logger) LogCompensation(ctx context.Context, paymentID, refundID string, amount float64, reason string) {
	l.Logger.WarnContext(ctx,
		"Payment Compensated",
		slog.String("payment_id", paymentID),
		slog.String("refund_id", refundID),
		slog.Float64("amount", amount),
		slog.String("reason", reason),
	)
}

// LogCompensationFailed logs a refund that must be reconciled
func (l *Logger) LogCompensationFailed(ctx context.Context, paymentID string, amount float64, attempts int, err error) {
	l.Logger.ErrorContext(ctx,
		"Compensation Failed",
		slog.String("payment_id", paymentID),
		slog.Float64("amount", amount),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

// Security logging methods

// LogAuthFailure logs failed authentication
func (l *Logger) LogAuthFailure(ctx context.Context, reason, ip string) {
	l.Logger.WarnContext(ctx,
		"Authentication Failure",
		slog.String("reason", reason),
		slog.String("ip", ip),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Helper methods for common patterns

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Logger.InfoContext(ctx, msg, fieldArgs(fields)...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := append([]interface{}{slog.String("error", err.Error())}, fieldArgs(fields)...)
	l.Logger.ErrorContext(ctx, msg, args...)
}

// WarnWithContext logs a warning with context
func (l *Logger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Logger.WarnContext(ctx, msg, fieldArgs(fields)...)
}

func fieldArgs(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return args
}
