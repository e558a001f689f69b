package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/onnwee/storyreader/internal/logger"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()

	if id1 == id2 {
		t.Error("generateRequestID should return unique IDs")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", id1, err)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, ok := r.Context().Value(logger.RequestIDKey).(string)
		if !ok || reqID == "" {
			t.Error("Request ID not found in context")
		}
		if responseID := w.Header().Get(RequestIDHeader); reqID != responseID {
			t.Errorf("context ID %q does not match header %q", reqID, responseID)
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	RequestID(handler).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestRequestIDMiddleware_IncomingID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"reused", "existing-request-id", true},
		{"oversized replaced", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = r.Context().Value(logger.RequestIDKey).(string)
			})
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			w := httptest.NewRecorder()
			RequestID(handler).ServeHTTP(w, req)

			if (seen == tt.incoming) != tt.keep {
				t.Fatalf("incoming %q, context %q", tt.incoming, seen)
			}
			if w.Header().Get(RequestIDHeader) != seen {
				t.Fatalf("response header %q, context %q", w.Header().Get(RequestIDHeader), seen)
			}
		})
	}
}
