package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// ensure defaults kick in with empty env
	for _, k := range []string{
		"STORY_API_BASE_URL", "STORY_API_USER_AGENT", "HTTP_MAX_RETRIES", "HTTP_RETRY_BASE_MS",
		"CACHE_DEFAULT_TTL_MS", "CACHE_MAX_ENTRIES", "LISTEN_ADDR", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
	} {
		os.Unsetenv(k)
	}
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := Load()
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("expected default base URL, got %q", cfg.APIBaseURL)
	}
	if cfg.UserAgent == "" {
		t.Fatalf("expected default UA, got empty")
	}
	if cfg.HTTPMaxRetries != 3 {
		t.Fatalf("expected default retries=3, got %d", cfg.HTTPMaxRetries)
	}
	if cfg.CacheDefaultTTL != 5*time.Minute {
		t.Fatalf("expected default cache TTL 5m, got %v", cfg.CacheDefaultTTL)
	}
	if cfg.CacheMaxEntries != 0 {
		t.Fatalf("expected unbounded cache by default, got %d", cfg.CacheMaxEntries)
	}
	if cfg.ListenAddr != ":8000" {
		t.Fatalf("expected :8000, got %q", cfg.ListenAddr)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 default origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %q", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORY_API_BASE_URL", "https://stories.example.com/")
	t.Setenv("CACHE_DEFAULT_TTL_MS", "1000")
	t.Setenv("CACHE_MAX_ENTRIES", "500")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,https://a.example.com,")
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := Load()
	if cfg.APIBaseURL != "https://stories.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.CacheDefaultTTL != time.Second {
		t.Fatalf("expected 1s TTL, got %v", cfg.CacheDefaultTTL)
	}
	if cfg.CacheMaxEntries != 500 {
		t.Fatalf("expected 500 entries, got %d", cfg.CacheMaxEntries)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected duplicates and blanks dropped, got %q", cfg.CORSAllowedOrigins)
	}
	if cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("expected trimmed origin, got %q", cfg.CORSAllowedOrigins[1])
	}
}

func TestLoadIsCached(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	if Load() != Load() {
		t.Fatal("expected Load to return the cached instance")
	}
}

func TestTTLOr(t *testing.T) {
	cfg := &Config{CacheDefaultTTL: time.Minute}
	if got := cfg.TTLOr(0); got != time.Minute {
		t.Fatalf("TTLOr(0) = %v, want 1m", got)
	}
	if got := cfg.TTLOr(time.Second); got != time.Second {
		t.Fatalf("TTLOr(1s) = %v, want 1s", got)
	}
}
