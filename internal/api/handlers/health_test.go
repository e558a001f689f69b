package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/storyreader/internal/readcache"
)

func TestHealth(t *testing.T) {
	c := readcache.New()
	h := Health(c)

	check := func(wantCode int, wantStatus string) {
		t.Helper()
		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rr.Code != wantCode {
			t.Fatalf("expected %d, got %d", wantCode, rr.Code)
		}
		var out map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out["status"] != wantStatus {
			t.Fatalf("expected status %s, got %s", wantStatus, out["status"])
		}
	}

	check(http.StatusOK, "ok")
	_ = c.Close()
	check(http.StatusServiceUnavailable, "shutting_down")
}
