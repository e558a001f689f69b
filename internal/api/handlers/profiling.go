package handlers

import (
	"context"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/onnwee/storyreader/internal/logger"
)

// LogPprofAccess logs profiling endpoint access attempts for security monitoring.
func LogPprofAccess(ctx context.Context, path, remoteAddr string) {
	logger.InfoContext(ctx, "Profiling endpoint accessed",
		"endpoint", path,
		"remote_addr", remoteAddr,
		"type", "security_audit")
}

// Pprof serves net/http/pprof below prefix. Callers must mount it behind admin auth.
func Pprof(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LogPprofAccess(r.Context(), r.URL.Path, r.RemoteAddr)
		switch name := strings.TrimPrefix(r.URL.Path, prefix); name {
		case "cmdline":
			pprof.Cmdline(w, r)
		case "profile":
			pprof.Profile(w, r)
		case "symbol":
			pprof.Symbol(w, r)
		case "trace":
			pprof.Trace(w, r)
		case "":
			pprof.Index(w, r)
		default:
			pprof.Handler(name).ServeHTTP(w, r)
		}
	})
}
