package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/storyreader/internal/apierr"
	"github.com/onnwee/storyreader/internal/config"
	"github.com/onnwee/storyreader/internal/metrics"
)

const (
	ipIdleTimeout = 3 * time.Minute
	sweepInterval = time.Minute
)

// RateLimiter enforces a global budget and a per-client-IP budget.
type RateLimiter struct {
	global  *rate.Limiter
	ipRate  rate.Limit
	ipBurst int
	now     func() time.Time

	mu    sync.Mutex
	perIP map[string]*ipLimiter

	stop     chan struct{}
	stopOnce sync.Once
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter and starts sweeping idle IP entries.
// Rates are requests per second; bursts are token bucket sizes.
func NewRateLimiter(globalRate float64, globalBurst int, ipRate float64, ipBurst int) *RateLimiter {
	rl := &RateLimiter{
		global:  rate.NewLimiter(rate.Limit(globalRate), max(globalBurst, 1)),
		ipRate:  rate.Limit(ipRate),
		ipBurst: max(ipBurst, 1),
		now:     time.Now,
		perIP:   make(map[string]*ipLimiter),
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// RateLimiterFromConfig builds the limiter from RATE_LIMIT_* settings.
func RateLimiterFromConfig(cfg *config.Config) *RateLimiter {
	return NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst, cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	entry, ok := rl.perIP[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.ipRate, rl.ipBurst)}
		rl.perIP[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep(rl.now())
		}
	}
}

// sweep drops IPs idle for longer than ipIdleTimeout.
func (rl *RateLimiter) sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for ip, entry := range rl.perIP {
		if now.Sub(entry.lastSeen) > ipIdleTimeout {
			delete(rl.perIP, ip)
			removed++
		}
	}
	return removed
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Limit returns a middleware handler that enforces rate limits.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.global.Allow() {
			metrics.GatewayRateLimited.WithLabelValues("global").Inc()
			w.Header().Set("Retry-After", "1")
			apierr.WriteErrorWithContext(w, r, apierr.RateLimitGlobal())
			return
		}
		if !rl.getLimiter(getClientIP(r)).Allow() {
			metrics.GatewayRateLimited.WithLabelValues("ip").Inc()
			w.Header().Set("Retry-After", "1")
			apierr.WriteErrorWithContext(w, r, apierr.RateLimitIP())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP prefers proxy headers, then the connection address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
