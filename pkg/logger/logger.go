package logger

import (
	"context"
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

// New creates a new logger instance
func New() *Logger {
	// Get log level from environment
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	// Create handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Create handler based on environment
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		// Use text handler for development (more readable)
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// Use JSON handler for production (structured)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
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

// WithWaitlistID adds waitlist ID to logger context
func (l *Logger) WithWaitlistID(waitlistID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("waitlist_id", waitlistID)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
	)
}

// Waitlist logging methods

// LogPositionJoined logs when a party joins a waitlist
func (l *Logger) LogPositionJoined(ctx context.Context, waitlistID, positionID string, rank int) {
	l.Logger.InfoContext(ctx,
		"Position Joined",
		slog.String("waitlist_id", waitlistID),
		slog.String("position_id", positionID),
		slog.Int("rank", rank),
	)
}

// LogStatusChange logs a position status transition
func (l *Logger) LogStatusChange(ctx context.Context, positionID, from, to string) {
	l.Logger.InfoContext(ctx,
		"Position Status Change",
		slog.String("position_id", positionID),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogRanksRecalculated logs the outcome of a rank recalculation pass
func (l *Logger) LogRanksRecalculated(ctx context.Context, waitlistID string, affected int) {
	l.Logger.DebugContext(ctx,
		"Ranks Recalculated",
		slog.String("waitlist_id", waitlistID),
		slog.Int("affected", affected),
	)
}

// Degradation logging: these paths never surface errors to callers.

// LogPredictionFallback logs that an estimate fell back to the heuristic
func (l *Logger) LogPredictionFallback(ctx context.Context, restaurantID string, err error) {
	l.Logger.WarnContext(ctx,
		"Prediction Fallback",
		slog.String("restaurant_id", restaurantID),
		slog.String("error", err.Error()),
	)
}

// LogTrainingFailure logs a model training failure (previous model retained)
func (l *Logger) LogTrainingFailure(ctx context.Context, restaurantID string, err error) {
	l.Logger.WarnContext(ctx,
		"Model Training Failure",
		slog.String("restaurant_id", restaurantID),
		slog.String("error", err.Error()),
	)
}

// LogBroadcastDropped logs a dropped subscriber delivery
func (l *Logger) LogBroadcastDropped(waitlistID string) {
	l.Logger.Warn(
		"Broadcast Delivery Dropped",
		slog.String("waitlist_id", waitlistID),
	)
}

// LogNotificationFailure logs a failed dispatch to the notification system
func (l *Logger) LogNotificationFailure(ctx context.Context, userID string, err error) {
	l.Logger.WarnContext(ctx,
		"Notification Dispatch Failure",
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
