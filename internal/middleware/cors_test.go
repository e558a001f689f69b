package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/storyreader/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_Origins(t *testing.T) {
	cfg := &CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000", "*.reader.example"},
		ExposedHeaders: []string{"X-Cache-State"},
	}
	tests := []struct {
		origin string
		allow  bool
	}{
		{"http://localhost:3000", true},
		{"https://app.reader.example", true},
		{"https://evilreader.example", false},
		{"http://evil.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/dashboard", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			CORS(cfg)(okHandler()).ServeHTTP(rr, req)

			got := rr.Header().Get("Access-Control-Allow-Origin")
			if tt.allow && got != tt.origin {
				t.Errorf("expected origin echoed, got %q", got)
			}
			if !tt.allow && got != "" {
				t.Errorf("expected no allow-origin, got %q", got)
			}
			if exposed := rr.Header().Get("Access-Control-Expose-Headers"); tt.allow != (exposed == "X-Cache-State") {
				t.Errorf("expose headers = %q", exposed)
			}
			if rr.Header().Get("Vary") != "Origin" {
				t.Error("missing Vary: Origin")
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := &CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         600,
	}
	called := false
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest("OPTIONS", "/api/admin/cache/invalidate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if called {
		t.Error("preflight must not reach the handler")
	}
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	if m := rr.Header().Get("Access-Control-Allow-Methods"); m != "GET, POST, DELETE" {
		t.Errorf("methods = %q", m)
	}
	if h := rr.Header().Get("Access-Control-Allow-Headers"); h != "Content-Type, Authorization" {
		t.Errorf("headers = %q", h)
	}
	if a := rr.Header().Get("Access-Control-Max-Age"); a != "600" {
		t.Errorf("max age = %q", a)
	}
}

func TestCORS_PreflightFromUnknownOrigin(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/api/dashboard", nil)
	req.Header.Set("Origin", "http://evil.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	CORS(nil)(okHandler()).ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Methods") != "" {
		t.Error("unknown origins must not learn the allowed methods")
	}
}

func TestCORS_PlainOptionsPassesThrough(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/api/dashboard", nil)
	rr := httptest.NewRecorder()
	CORS(nil)(okHandler()).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("non-preflight OPTIONS should reach the handler, got %d", rr.Code)
	}
}

func TestCORSConfigFromConfig(t *testing.T) {
	c := CORSConfigFromConfig(&config.Config{CORSAllowedOrigins: []string{"https://reader.example"}})
	if len(c.AllowedOrigins) != 1 || c.AllowedOrigins[0] != "https://reader.example" {
		t.Fatalf("origins = %v", c.AllowedOrigins)
	}
	if len(c.AllowedMethods) == 0 {
		t.Fatal("defaults lost")
	}
}
