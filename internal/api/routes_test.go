package api

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/storyreader/internal/config"
	"github.com/onnwee/storyreader/internal/library"
	"github.com/onnwee/storyreader/internal/readcache"
	"github.com/onnwee/storyreader/internal/storyapi"
)

// newTestRouter wires the router to a story service that serves one story for
// any id. adminToken is exported as ADMIN_API_TOKEN before config is loaded.
func newTestRouter(t *testing.T, adminToken string) (http.Handler, *library.Service) {
	t.Helper()
	t.Setenv("ADMIN_API_TOKEN", adminToken)
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		id := strings.TrimPrefix(r.URL.Path, "/stories/")
		_ = json.NewEncoder(w).Encode(storyapi.Story{ID: id, Title: strings.Repeat("long title ", 200)})
	}))
	t.Cleanup(upstream.Close)

	client, err := storyapi.New(storyapi.Options{BaseURL: upstream.URL, MaxAttempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	c := readcache.New(readcache.WithName(t.Name()))
	t.Cleanup(func() { _ = c.Close() })
	svc := library.New(client, c, library.TTLs{Default: time.Minute})
	return NewRouter(Deps{Library: svc}), svc
}

func TestRoutesRegistered(t *testing.T) {
	router, _ := newTestRouter(t, "")
	paths := []string{
		"/health",
		"/metrics",
		"/api/dashboard",
		"/api/stories",
		"/api/stories/s-1",
		"/api/stories/s-1/chapters",
		"/api/stories/s-1/chapters/1",
		"/api/users/u-1",
		"/api/users/u-1/reads",
		"/api/users/u-1/notifications",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
			// A 404 means the route doesn't exist; any other status means we reached the handler
			if rr.Code == http.StatusNotFound {
				t.Errorf("%s not registered", p)
			}
		})
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	router, _ := newTestRouter(t, "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/nowhere/at/all", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "RESOURCE_NOT_FOUND") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestStoryView_ThroughMiddleware(t *testing.T) {
	router, _ := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/stories/s-1", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	for header, want := range map[string]string{
		"X-Cache-State":          "fresh",
		"Content-Encoding":       "gzip",
		"X-Content-Type-Options": "nosniff",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rr.Header().Get("X-Request-ID") == "" || rr.Header().Get("ETag") == "" {
		t.Errorf("missing request id or etag: %v", rr.Header())
	}

	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	raw, _ := io.ReadAll(zr)
	var s storyapi.Story
	if err := json.Unmarshal(raw, &s); err != nil || s.ID != "s-1" {
		t.Fatalf("unexpected body %q (%v)", raw, err)
	}

	// revalidation with the same ETag
	again := httptest.NewRequest(http.MethodGet, "/api/stories/s-1", nil)
	again.Header.Set("If-None-Match", rr.Header().Get("ETag"))
	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, again)
	if rr2.Code != http.StatusNotModified {
		t.Fatalf("revalidation status = %d, want 304", rr2.Code)
	}
}

func TestHealthReportsShutdown(t *testing.T) {
	router, svc := newTestRouter(t, "")
	_ = svc.Cache().Close()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
