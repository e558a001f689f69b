package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/storyreader/internal/readcache"
)

// Health returns a simple JSON payload to indicate the API is alive. Once the
// cache has been closed for shutdown it reports 503 so balancers drain.
func Health(c *readcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if c.Closed() {
			status, code = "shutting_down", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
