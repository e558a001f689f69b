package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/storyreader/internal/apierr"
	"github.com/onnwee/storyreader/internal/library"
	"github.com/onnwee/storyreader/internal/readcache"
	"github.com/onnwee/storyreader/internal/storyapi"
)

// upstream is a stand-in story service. Setting failWith makes every request
// answer with that status.
type upstream struct {
	hits     atomic.Int64
	failWith atomic.Int64
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.hits.Add(1)
	if code := int(u.failWith.Load()); code != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"message":"upstream says no"}`))
		return
	}

	var body any
	switch path := r.URL.Path; {
	case path == "/stories/dashboard":
		body = storyapi.Dashboard{}
	case strings.HasSuffix(path, "/chapters"):
		body = []storyapi.Chapter{{ID: "c-1", Title: "Arrival", Number: 1}}
	case strings.Contains(path, "/chapter/"):
		body = storyapi.Chapter{ID: "c-1", Title: "Arrival", Number: 1, Content: "It was late."}
	case path == "/stories":
		body = []storyapi.Story{{ID: "s-1", Title: "Tides"}, {ID: "s-2", Title: "Ebb"}, {ID: "s-3", Title: "Flow"}}
	case strings.HasPrefix(path, "/stories/"):
		body = storyapi.Story{ID: strings.TrimPrefix(path, "/stories/"), Title: "Tides"}
	case strings.HasPrefix(path, "/users/id/"):
		body = storyapi.User{ID: strings.TrimPrefix(path, "/users/id/"), Username: "ann"}
	case strings.HasSuffix(path, "/reads"):
		body = []storyapi.ReadProgress{}
	case strings.HasSuffix(path, "/notifications"):
		body = []storyapi.Notification{}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	up    *upstream
	clock *testClock
	svc   *library.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	up := &upstream{}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	client, err := storyapi.New(storyapi.Options{BaseURL: srv.URL, MaxAttempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := readcache.New(readcache.WithName(t.Name()), readcache.WithClock(clock.Now))
	t.Cleanup(func() { _ = c.Close() })

	return &fixture{
		up:    up,
		clock: clock,
		svc:   library.New(client, c, library.TTLs{Default: time.Minute}),
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) *apierr.Error {
	t.Helper()
	var resp apierr.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp.Error == nil {
		t.Fatalf("expected error body, got %q (%v)", rr.Body.String(), err)
	}
	return resp.Error
}
