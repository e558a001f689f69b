package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/storyreader/internal/api/handlers"
	"github.com/onnwee/storyreader/internal/apierr"
	"github.com/onnwee/storyreader/internal/config"
	"github.com/onnwee/storyreader/internal/library"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/middleware"
	"github.com/onnwee/storyreader/internal/secrets"
)

// Deps are what the router needs from main. RateLimiter and CORS are optional.
type Deps struct {
	Library     *library.Service
	WebSocket   *handlers.WebSocketHandler
	RateLimiter *middleware.RateLimiter
	CORS        *middleware.CORSConfig
}

// NewRouter builds the gateway handler. The outer chain runs for every request,
// including preflights and unmatched paths, so it wraps the router rather than
// being installed with Use.
func NewRouter(d Deps) http.Handler {
	cfg := config.Load()
	if d.WebSocket == nil {
		d.WebSocket = handlers.NewWebSocketHandler(d.Library)
	}
	if d.CORS == nil {
		d.CORS = middleware.CORSConfigFromConfig(cfg)
	}

	var h http.Handler = routes(cfg, d)
	h = middleware.Compress(h)
	if d.RateLimiter != nil {
		h = d.RateLimiter.Limit(h)
	}
	h = middleware.CORS(d.CORS)(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RecoverWithSentry(h)
	return middleware.RequestID(h)
}

func routes(cfg *config.Config, d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Instrument)

	r.HandleFunc("/health", handlers.Health(d.Library.Cache())).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Live updates
	r.HandleFunc("/api/ws", d.WebSocket.HandleWebSocket).Methods("GET")

	// Admin
	cacheAdmin := handlers.NewCacheAdminHandler(d.Library)
	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(adminOnly(cfg))
	admin.Use(middleware.ValidateRequestBody)
	admin.HandleFunc("/cache/stats", cacheAdmin.GetCacheStats).Methods("GET")
	admin.HandleFunc("/cache/entry", cacheAdmin.PeekEntry).Methods("GET")
	admin.HandleFunc("/cache/invalidate", cacheAdmin.InvalidateCache).Methods("POST")
	admin.PathPrefix("/debug/pprof/").Handler(handlers.Pprof("/api/admin/debug/pprof/")).Methods("GET")

	// Reading room views
	views := handlers.NewViews(d.Library)
	v := r.PathPrefix("/api").Subrouter()
	v.Use(middleware.ETag)
	v.HandleFunc("/dashboard", views.Dashboard).Methods("GET")
	v.HandleFunc("/stories", views.Stories).Methods("GET")
	v.HandleFunc("/stories/{id}", views.Story).Methods("GET")
	v.HandleFunc("/stories/{id}/chapters", views.Chapters).Methods("GET")
	v.HandleFunc("/stories/{id}/chapters/{n}", views.Chapter).Methods("GET")
	v.HandleFunc("/users/{id}", views.Profile).Methods("GET")
	v.HandleFunc("/users/{id}/reads", views.Reads).Methods("GET")
	v.HandleFunc("/users/{id}/notifications", views.Notifications).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		apierr.WriteErrorWithContext(w, req, apierr.ResourceNotFound("Route"))
	})
	return r
}

// adminOnly requires "Authorization: Bearer <ADMIN_API_TOKEN>". With no token
// configured the admin surface is closed.
func adminOnly(cfg *config.Config) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminAPIToken == "" {
				http.Error(w, "admin token not configured", http.StatusServiceUnavailable)
				return
			}
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminAPIToken)) != 1 {
				logger.WarnContext(r.Context(), "Rejected admin request",
					"path", r.URL.Path, "authorization", secrets.MaskBearer(header))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
