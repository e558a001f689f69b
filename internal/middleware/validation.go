package middleware

import (
	"mime"
	"net/http"

	"github.com/onnwee/storyreader/internal/apierr"
)

// MaxRequestBodySize caps request bodies. Gateway writes are small JSON documents.
const MaxRequestBodySize = 1 << 20

// ValidateRequestBody limits body size on writes and requires JSON when a
// body is present.
func ValidateRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > MaxRequestBodySize {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("body", "Request body too large"))
			return
		}
		if r.ContentLength != 0 {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mt, _, err := mime.ParseMediaType(ct)
				if err != nil || mt != "application/json" {
					apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidFormat("Content-Type must be application/json"))
					return
				}
			}
		}
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		next.ServeHTTP(w, r)
	})
}
