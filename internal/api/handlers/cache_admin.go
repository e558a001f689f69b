package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/onnwee/storyreader/internal/apierr"
	"github.com/onnwee/storyreader/internal/library"
	"github.com/onnwee/storyreader/internal/logger"
)

// CacheAdminHandler handles cache administration endpoints.
type CacheAdminHandler struct {
	svc *library.Service
}

// NewCacheAdminHandler creates a new cache admin handler.
func NewCacheAdminHandler(svc *library.Service) *CacheAdminHandler {
	return &CacheAdminHandler{svc: svc}
}

type invalidateRequest struct {
	Key string `json:"key"`
}

// InvalidateCache drops one key when the body names it, or every key otherwise.
// POST /api/admin/cache/invalidate
func (h *CacheAdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON())
		return
	}

	c := h.svc.Cache()
	message := "Cache invalidated successfully"
	if req.Key != "" {
		c.Invalidate(req.Key)
		message = "Key invalidated"
	} else {
		c.Clear()
	}
	logger.InfoContext(r.Context(), "Cache invalidated by admin", "key", req.Key)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"message": message,
		"key":     req.Key,
	})
}

// GetCacheStats returns current cache statistics.
// GET /api/admin/cache/stats
func (h *CacheAdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.svc.Cache().Stats())
}

// PeekEntry reports the state of one key without fetching it.
// GET /api/admin/cache/entry?key=
func (h *CacheAdminHandler) PeekEntry(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("key"))
		return
	}
	res := h.svc.Peek(key)
	body := struct {
		Key      string `json:"key"`
		State    string `json:"state"`
		Loading  bool   `json:"loading"`
		HasValue bool   `json:"hasValue"`
		Error    string `json:"error,omitempty"`
	}{
		Key:      key,
		State:    res.State.String(),
		Loading:  res.Loading,
		HasValue: res.Value != nil,
	}
	if res.Err != nil {
		body.Error = apierr.From(res.Err).Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
