package errorreporting

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/onnwee/storyreader/internal/config"
)

// PII patterns to scrub from error messages
var piiPatterns = []*regexp.Regexp{
	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	// Bearer tokens issued by the story API
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]{16,}`),
	// JWTs outside an Authorization header
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
	// Credentials in key/value form
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password)["\s:=]+[^\s"&,]{6,}`),
	// IP addresses
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

var enabled atomic.Bool

// Options configures the Sentry client.
type Options struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// OptionsFromConfig maps the SENTRY_* configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		SampleRate:  cfg.SentrySampleRate,
	}
}

// Init initializes Sentry error reporting. An empty DSN leaves reporting off.
func Init(opts Options) error {
	if opts.DSN == "" {
		return nil
	}
	release := opts.Release
	if release == "" {
		release = "dev"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          release,
		SampleRate:       opts.SampleRate,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	enabled.Store(true)
	return nil
}

// beforeSend is called before sending events to Sentry
// It scrubs PII and sanitizes sensitive data
func beforeSend(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = scrubPII(event.Exception[i].Value)
	}
	if event.Message != "" {
		event.Message = scrubPII(event.Message)
	}
	for key, value := range event.Extra {
		if str, ok := value.(string); ok {
			event.Extra[key] = scrubPII(str)
		}
	}

	if event.Request != nil {
		if event.Request.Headers != nil {
			delete(event.Request.Headers, "Authorization")
			delete(event.Request.Headers, "Cookie")
			delete(event.Request.Headers, "X-Api-Key")
		}
		// Query strings can carry tokens
		event.Request.QueryString = ""
		event.Request.Data = ""
	}

	return event
}

func scrubPII(text string) string {
	result := text
	for _, pattern := range piiPatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// ScrubPII exposes the PII scrubbing function for external use
func ScrubPII(text string) string {
	return scrubPII(text)
}

// CaptureError captures an error and sends it to Sentry
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// CaptureErrorWithContext captures an error with tags and extra data
func CaptureErrorWithContext(err error, tags map[string]string, extras map[string]any) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		// extras are scrubbed by beforeSend
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// AddBreadcrumb records a breadcrumb attached to the next captured event.
func AddBreadcrumb(category, message string, level sentry.Level) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   scrubPII(message),
		Level:     level,
		Timestamp: time.Now(),
	})
}

// Flush waits for all events to be sent to Sentry
func Flush(timeout time.Duration) bool {
	if !enabled.Load() {
		return true
	}
	return sentry.Flush(timeout)
}

// Enabled reports whether Init configured a client.
func Enabled() bool {
	return enabled.Load()
}
