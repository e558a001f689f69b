package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

func storyPayload() string {
	var b strings.Builder
	b.WriteString(`{"trending":[`)
	for i := 0; i < 200; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"id":"s","title":"The long voyage home","status":"ongoing","likeCount":12}`)
	}
	b.WriteString(`]}`)
	return b.String()
}

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", "12345")
		_, _ = io.WriteString(w, body)
	})
}

func TestNegotiateEncoding(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"gzip", "gzip"},
		{"gzip, deflate, br", "br"},
		{"br;q=0.5, gzip", "gzip"},
		{"br;q=0, gzip;q=0", ""},
		{"deflate", ""},
		{"*", "br"},
		{"*;q=0.2, gzip", "gzip"},
		{"GZIP", "gzip"},
	}
	for _, tt := range tests {
		if got := negotiateEncoding(tt.header); got != tt.want {
			t.Errorf("negotiateEncoding(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestCompress_RoundTrip(t *testing.T) {
	body := storyPayload()
	tests := []struct {
		accept string
		want   string
		decode func(io.Reader) (io.Reader, error)
	}{
		{"gzip", "gzip", func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
		{"br", "br", func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil }},
		{"", "", func(r io.Reader) (io.Reader, error) { return r, nil }},
	}
	for _, tt := range tests {
		t.Run("accept="+tt.accept, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}
			rr := httptest.NewRecorder()
			Compress(jsonHandler(body)).ServeHTTP(rr, req)

			if got := rr.Header().Get("Content-Encoding"); got != tt.want {
				t.Fatalf("Content-Encoding = %q, want %q", got, tt.want)
			}
			if tt.want != "" {
				if rr.Header().Get("Content-Length") != "" {
					t.Error("Content-Length must be dropped when compressing")
				}
				if rr.Body.Len() >= len(body)/3 {
					t.Errorf("poor compression: %d of %d bytes", rr.Body.Len(), len(body))
				}
			}
			if rr.Header().Get("Vary") != "Accept-Encoding" {
				t.Errorf("Vary = %q", rr.Header().Get("Vary"))
			}

			rd, err := tt.decode(rr.Body)
			if err != nil {
				t.Fatalf("decoder: %v", err)
			}
			got, err := io.ReadAll(rd)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if string(got) != body {
				t.Fatal("decoded body differs")
			}
		})
	}
}

func TestCompress_Passthrough(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		upgrade string
		handler http.Handler
	}{
		{"no content", http.MethodGet, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})},
		{"already encoded", http.MethodGet, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "identity")
			_, _ = io.WriteString(w, "raw")
		})},
		{"websocket", http.MethodGet, "websocket", jsonHandler("{}")},
		{"head", http.MethodHead, "", jsonHandler("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/ws", nil)
			req.Header.Set("Accept-Encoding", "gzip, br")
			if tt.upgrade != "" {
				req.Header.Set("Upgrade", tt.upgrade)
			}
			rr := httptest.NewRecorder()
			Compress(tt.handler).ServeHTTP(rr, req)

			if enc := rr.Header().Get("Content-Encoding"); enc == "gzip" || enc == "br" {
				t.Fatalf("unexpected Content-Encoding %q", enc)
			}
		})
	}
}

func TestCompress_Flush(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "first chunk")
		w.(http.Flusher).Flush()
	})
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	Compress(handler).ServeHTTP(rr, req)

	if !rr.Flushed {
		t.Fatal("flush did not reach the underlying writer")
	}
	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(zr)
	if string(got) != "first chunk" {
		t.Fatalf("body = %q", got)
	}
}

func BenchmarkCompress(b *testing.B) {
	body := storyPayload()
	for _, enc := range []string{"gzip", "br"} {
		b.Run(enc, func(b *testing.B) {
			handler := Compress(jsonHandler(body))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
				req.Header.Set("Accept-Encoding", enc)
				handler.ServeHTTP(httptest.NewRecorder(), req)
			}
		})
	}
}
