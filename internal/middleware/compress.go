package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// brotliLevel trades a little ratio for speed on per-request JSON.
const brotliLevel = 5

type encoder interface {
	io.Writer
	Flush() error
	Close() error
	Reset(io.Writer)
}

var (
	gzipPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	}}
	brotliPool = sync.Pool{New: func() any {
		return brotli.NewWriterLevel(io.Discard, brotliLevel)
	}}
)

// compressWriter starts encoding on the first header write unless the
// response has no body or is already encoded.
type compressWriter struct {
	http.ResponseWriter
	encoding    string
	pool        *sync.Pool
	enc         encoder
	wroteHeader bool
	passthrough bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	h := w.Header()
	if status == http.StatusNoContent || status == http.StatusNotModified || h.Get("Content-Encoding") != "" {
		w.passthrough = true
	} else {
		h.Set("Content-Encoding", w.encoding)
		h.Del("Content-Length")
		w.enc = w.pool.Get().(encoder)
		w.enc.Reset(w.ResponseWriter)
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.passthrough {
		return w.ResponseWriter.Write(b)
	}
	return w.enc.Write(b)
}

func (w *compressWriter) Flush() {
	if w.enc != nil {
		_ = w.enc.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *compressWriter) finish() {
	if w.enc == nil {
		return
	}
	_ = w.enc.Close()
	w.enc.Reset(io.Discard)
	w.pool.Put(w.enc)
	w.enc = nil
}

// Compress encodes responses with brotli or gzip, whichever the client
// prefers, favoring brotli on a tie. Websocket upgrades and HEAD requests
// pass through untouched.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		if r.Method == http.MethodHead || strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		var pool *sync.Pool
		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		switch encoding {
		case "br":
			pool = &brotliPool
		case "gzip":
			pool = &gzipPool
		default:
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, encoding: encoding, pool: pool}
		defer cw.finish()
		next.ServeHTTP(cw, r)
	})
}

// negotiateEncoding picks "br", "gzip" or "" from an Accept-Encoding header.
func negotiateEncoding(header string) string {
	if header == "" {
		return ""
	}
	q := map[string]float64{}
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		weight := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				weight = f
			}
		}
		q[name] = weight
	}
	if star, ok := q["*"]; ok {
		for _, enc := range []string{"br", "gzip"} {
			if _, named := q[enc]; !named {
				q[enc] = star
			}
		}
	}

	br, gz := q["br"], q["gzip"]
	switch {
	case br > 0 && br >= gz:
		return "br"
	case gz > 0:
		return "gzip"
	}
	return ""
}
