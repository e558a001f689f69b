package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/onnwee/storyreader/internal/logger"
)

// RequestIDHeader is the header name for request IDs
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds IDs accepted from callers.
const maxRequestIDLen = 128

func generateRequestID() string {
	return uuid.NewString()
}

// RequestID tags each request with an ID, reusing a caller-supplied one when
// it is short enough to log safely.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = generateRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
