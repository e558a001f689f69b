package config

import (
	"os"
	"strings"
	"time"

	"github.com/onnwee/storyreader/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// Remote story API
	APIBaseURL     string
	UserAgent      string
	SessionFile    string
	HTTPMaxRetries int
	HTTPRetryBase  time.Duration
	HTTPTimeout    time.Duration
	LogHTTPRetries bool
	// Client-side pacing and breaker for the remote API
	APIRPS          float64
	APIBurst        int
	BreakerFailures int
	BreakerTimeout  time.Duration
	// Read-through cache
	CacheDefaultTTL time.Duration
	CacheMaxEntries int64 // 0 keeps an unbounded map store
	// Per-view TTL overrides; zero falls back to CacheDefaultTTL
	StoryTTL        time.Duration
	NotificationTTL time.Duration
	// Gateway
	ListenAddr    string
	AdminAPIToken string
	// Security settings
	RateLimitGlobal      float64  // requests per second globally
	RateLimitGlobalBurst int      // burst size for global rate limit
	RateLimitPerIP       float64  // requests per second per IP
	RateLimitPerIPBurst  int      // burst size for per-IP rate limit
	CORSAllowedOrigins   []string // allowed CORS origins
	EnableRateLimit      bool     // enable rate limiting middleware
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		APIBaseURL:      strings.TrimRight(strings.TrimSpace(os.Getenv("STORY_API_BASE_URL")), "/"),
		UserAgent:       strings.TrimSpace(os.Getenv("STORY_API_USER_AGENT")),
		SessionFile:     strings.TrimSpace(os.Getenv("SESSION_FILE")),
		HTTPMaxRetries:  utils.GetEnvAsInt("HTTP_MAX_RETRIES", 3),
		HTTPRetryBase:   utils.GetEnvAsMillis("HTTP_RETRY_BASE_MS", 300*time.Millisecond),
		HTTPTimeout:     utils.GetEnvAsMillis("HTTP_TIMEOUT_MS", 15*time.Second),
		LogHTTPRetries:  utils.GetEnvAsBool("LOG_HTTP_RETRIES", false),
		APIRPS:          utils.GetEnvAsFloat("API_RPS", 20.0),
		APIBurst:        utils.GetEnvAsInt("API_BURST", 10),
		BreakerFailures: utils.GetEnvAsInt("BREAKER_FAILURES", 5),
		BreakerTimeout:  utils.GetEnvAsMillis("BREAKER_TIMEOUT_MS", 30*time.Second),
		// Five minutes matches what the reading pages expect from a cached view
		CacheDefaultTTL: utils.GetEnvAsMillis("CACHE_DEFAULT_TTL_MS", 5*time.Minute),
		CacheMaxEntries: int64(utils.GetEnvAsInt("CACHE_MAX_ENTRIES", 0)),
		StoryTTL:        utils.GetEnvAsMillis("CACHE_STORY_TTL_MS", 0),
		NotificationTTL: utils.GetEnvAsMillis("CACHE_NOTIFICATION_TTL_MS", 30*time.Second),
		ListenAddr:      strings.TrimSpace(os.Getenv("LISTEN_ADDR")),
		AdminAPIToken:   strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),
		// Security settings with sensible defaults
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		// Observability settings
		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	if cached.APIBaseURL == "" {
		cached.APIBaseURL = "http://localhost:8080"
	}
	if cached.UserAgent == "" {
		cached.UserAgent = "storyreader/0.1"
	}
	if cached.SessionFile == "" {
		cached.SessionFile = ".storyreader-session.json"
	}
	if cached.ListenAddr == "" {
		cached.ListenAddr = ":8000"
	}
	if cached.CacheDefaultTTL < 0 {
		cached.CacheDefaultTTL = 5 * time.Minute
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	// Parse CORS allowed origins
	cached.CORSAllowedOrigins = utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS",
		[]string{"http://localhost:5173", "http://localhost:3000"}, ",")
	for i := range cached.CORSAllowedOrigins {
		cached.CORSAllowedOrigins[i] = strings.TrimSpace(cached.CORSAllowedOrigins[i])
	}
	cached.CORSAllowedOrigins = utils.UniqueStrings(cached.CORSAllowedOrigins)

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// TTLOr returns ttl when positive, otherwise the configured cache default.
func (c *Config) TTLOr(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return c.CacheDefaultTTL
}
