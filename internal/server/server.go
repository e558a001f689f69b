// Package server assembles the gateway: story API client, read cache,
// reading-room service and HTTP router, with an orderly shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/onnwee/storyreader/internal/api"
	"github.com/onnwee/storyreader/internal/api/handlers"
	"github.com/onnwee/storyreader/internal/authstore"
	"github.com/onnwee/storyreader/internal/cache"
	"github.com/onnwee/storyreader/internal/config"
	"github.com/onnwee/storyreader/internal/library"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/metrics"
	"github.com/onnwee/storyreader/internal/middleware"
	"github.com/onnwee/storyreader/internal/readcache"
	"github.com/onnwee/storyreader/internal/storyapi"
)

const (
	cacheName       = "library"
	collectInterval = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// NewCache builds the read cache, bounded by ristretto when CACHE_MAX_ENTRIES is set.
func NewCache(cfg *config.Config) (*readcache.Cache, error) {
	opts := []readcache.Option{
		readcache.WithName(cacheName),
		readcache.WithDefaultTTL(cfg.CacheDefaultTTL),
	}
	if cfg.CacheMaxEntries > 0 {
		store, err := cache.NewLRU(cfg.CacheMaxEntries)
		if err != nil {
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		opts = append(opts, readcache.WithStore(store))
	}
	return readcache.New(opts...), nil
}

// NewLibrary wires the session file, story API client and cache into a library.Service.
func NewLibrary(cfg *config.Config) (*library.Service, error) {
	sessions, err := authstore.NewFileStore(cfg.SessionFile)
	if err != nil {
		return nil, err
	}
	opts := storyapi.OptionsFromConfig(cfg, sessions)
	opts.OnUnauthorized = func() {
		logger.Warn("Story service rejected the stored session", "session_file", sessions.Path())
	}
	client, err := storyapi.New(opts)
	if err != nil {
		return nil, err
	}
	c, err := NewCache(cfg)
	if err != nil {
		return nil, err
	}
	return library.New(client, c, library.TTLsFromConfig(cfg)), nil
}

// Server is the running gateway.
type Server struct {
	cfg       *config.Config
	svc       *library.Service
	ws        *handlers.WebSocketHandler
	limiter   *middleware.RateLimiter
	collector *metrics.Collector
	http      *http.Server
}

// New builds a Server around svc.
func New(cfg *config.Config, svc *library.Service) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
		ws:  handlers.NewWebSocketHandler(svc),
	}
	if cfg.EnableRateLimit {
		s.limiter = middleware.RateLimiterFromConfig(cfg)
	}
	c := svc.Cache()
	s.collector = metrics.NewCollector(c.Name(), func() metrics.StoreSample {
		st := c.Stats().Store
		return metrics.StoreSample{Items: st.Items, Evictions: st.Evictions}
	}, collectInterval)

	s.http = &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewRouter(api.Deps{
			Library:     svc,
			WebSocket:   s.ws,
			RateLimiter: s.limiter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down:
// HTTP first, then websocket subscribers, background loops and the cache.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.collector.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Gateway listening", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	logger.Info("Shutting down gateway")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown did not complete", "error", err)
	}
	s.ws.Hub().CloseAll()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.collector.Stop()
	if err := s.svc.Cache().Close(); err != nil {
		logger.Warn("Cache close failed", "error", err)
	}
	return serveErr
}
