package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/onnwee/storyreader/internal/secrets"
)

// ContextKey is a type for context keys used by the logger
type ContextKey string

const (
	// RequestIDKey is the context key for request IDs
	RequestIDKey ContextKey = "request_id"
)

// sensitiveKeys are attribute keys whose values are masked before output.
var sensitiveKeys = map[string]bool{
	"token":         true,
	"authorization": true,
	"password":      true,
	"admin_token":   true,
}

var defaultLogger *slog.Logger

// Init initializes the global logger with the specified log level
func Init(levelStr string) {
	InitTo(os.Stdout, levelStr)
}

// InitTo is Init with the output chosen by the caller. Commands whose stdout
// is their result log to stderr.
func InitTo(w io.Writer, levelStr string) {
	// Use JSON format in production, text format in development
	defaultLogger = New(w, levelStr, os.Getenv("ENV") == "production")
	slog.SetDefault(defaultLogger)
}

// New builds a logger writing to w. Secrets under well-known keys are masked.
func New(w io.Writer, levelStr string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(levelStr),
		ReplaceAttr: redact,
	}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, secrets.Mask(a.Value.String()))
	}
	return a
}

// parseLevel converts a string log level to slog.Level
func parseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
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

// Get returns the default logger
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("info")
	}
	return defaultLogger
}

// SetForTest swaps the default logger and returns a func restoring the previous one.
func SetForTest(l *slog.Logger) func() {
	prev := defaultLogger
	defaultLogger = l
	return func() { defaultLogger = prev }
}

// WithRequestID returns a logger with the request ID from context
func WithRequestID(ctx context.Context) *slog.Logger {
	logger := Get()
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// WithComponent returns a logger with a component label
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

// DebugContext logs a debug message with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	WithRequestID(ctx).Debug(msg, args...)
}

// InfoContext logs an info message with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	WithRequestID(ctx).Info(msg, args...)
}

// WarnContext logs a warning message with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	WithRequestID(ctx).Warn(msg, args...)
}

// ErrorContext logs an error message with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithRequestID(ctx).Error(msg, args...)
}
