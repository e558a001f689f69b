package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// etagResponseWriter buffers a GET response so it can be hashed.
type etagResponseWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *etagResponseWriter) WriteHeader(status int) { w.status = status }

func (w *etagResponseWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

// ETag tags successful GET responses with a body hash and answers matching
// If-None-Match with 304. Views are per-user, so clients must revalidate
// every time; the saving is the body, not the round trip.
func ETag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		etw := &etagResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(etw, r)

		if etw.status != http.StatusOK {
			w.WriteHeader(etw.status)
			_, _ = w.Write(etw.buf.Bytes())
			return
		}

		sum := sha256.Sum256(etw.buf.Bytes())
		etag := `"` + hex.EncodeToString(sum[:16]) + `"`
		w.Header().Set("ETag", etag)
		if w.Header().Get("Cache-Control") == "" {
			w.Header().Set("Cache-Control", "private, no-cache")
		}

		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.Header().Del("Content-Length")
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(etw.buf.Bytes())
	})
}

// etagMatches applies the weak comparison If-None-Match calls for.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
