package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/storyreader/internal/config"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/metrics"
	"github.com/onnwee/storyreader/internal/secrets"
)

// ErrExhausted is returned when every attempt failed at the transport level.
var ErrExhausted = errors.New("httpx: exhausted retries")

// maxRetryAfter caps how long a Retry-After header may stall a request.
const maxRetryAfter = 60 * time.Second

// PreAttempt lets callers run logic (e.g., rate limiting) before each try; return an error to abort.
type PreAttempt func(ctx context.Context, attempt int) error

// AttemptInfo describes a single attempt outcome.
type AttemptInfo struct {
	Attempt int
	Method  string
	URL     string
	Status  int
	Err     error
	Wait    time.Duration
}

// Observer callback to report attempt telemetry.
type Observer func(info AttemptInfo)

// Retrier sends requests with bounded retries on transport errors, 429 and 5xx,
// honoring Retry-After and backing off linearly with jitter between attempts.
type Retrier struct {
	Client      *http.Client
	MaxAttempts int
	BaseDelay   time.Duration
	LogRetries  bool
	Pre         PreAttempt
	Observer    Observer
}

// NewRetrier builds a Retrier from the HTTP_* configuration.
func NewRetrier(client *http.Client, cfg *config.Config) *Retrier {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Retrier{
		Client:      client,
		MaxAttempts: cfg.HTTPMaxRetries,
		BaseDelay:   cfg.HTTPRetryBase,
		LogRetries:  cfg.LogHTTPRetries,
	}
}

// Do sends the request produced by build. build is called once per attempt so
// request bodies can be replayed. A final 429/5xx response is returned as-is
// for the caller to map; only transport failures and ctx expiry become errors.
func (r *Retrier) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	log := logger.WithComponent("httpx")
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.Pre != nil {
			if err := r.Pre(ctx, attempt); err != nil {
				return nil, err
			}
		}
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		url := secrets.MaskURL(req.URL.String())

		resp, err := r.Client.Do(req)
		info := AttemptInfo{Attempt: attempt, Method: req.Method, URL: url, Err: err}
		var hinted time.Duration
		if err != nil {
			metrics.StoryAPIRequests.WithLabelValues("error").Inc()
			lastErr = err
			if attempt == maxAttempts || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if r.LogRetries {
					log.Warn("request failed, no more retries", "attempt", attempt, "method", req.Method, "url", url, "error", err)
				}
				r.observe(info)
				return nil, err
			}
		} else {
			info.Status = resp.StatusCode
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				metrics.StoryAPIRequests.WithLabelValues("success").Inc()
				if r.LogRetries && attempt > 1 {
					log.Info("request succeeded after retry", "attempt", attempt, "method", req.Method, "url", url, "status", resp.StatusCode)
				}
				r.observe(info)
				return resp, nil
			}
			metrics.StoryAPIRequests.WithLabelValues("retry").Inc()
			if attempt == maxAttempts {
				if r.LogRetries {
					log.Warn("giving up on retryable status", "attempt", attempt, "method", req.Method, "url", url, "status", resp.StatusCode)
				}
				r.observe(info)
				return resp, nil
			}
			hinted = RetryAfter(resp.Header.Get("Retry-After"), time.Now())
			resp.Body.Close()
		}

		metrics.StoryAPIRetries.Inc()
		info.Wait = hinted
		if hinted > 0 {
			metrics.StoryAPIRetryAfterWaits.Observe(hinted.Seconds())
		} else {
			jitter := time.Duration(rand.Intn(200)) * time.Millisecond
			info.Wait = r.BaseDelay*time.Duration(attempt) + jitter
		}
		r.observe(info)
		if r.LogRetries {
			log.Info("backing off", "attempt", attempt, "wait", info.Wait, "method", req.Method, "url", url, "status", info.Status)
		}
		if err := sleep(ctx, info.Wait); err != nil {
			return nil, err
		}
	}
	if lastErr != nil {
		return nil, errors.Join(ErrExhausted, lastErr)
	}
	return nil, ErrExhausted
}

func (r *Retrier) observe(info AttemptInfo) {
	if r.Observer != nil {
		r.Observer(info)
	}
}

// RetryAfter parses a Retry-After header given as seconds or an HTTP date.
// Zero means no usable hint; results are capped at one minute.
func RetryAfter(header string, now time.Time) time.Duration {
	if header == "" {
		return 0
	}
	var wait time.Duration
	if secs, err := strconv.Atoi(header); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(header); err == nil {
		wait = t.Sub(now)
	}
	if wait <= 0 {
		return 0
	}
	return min(wait, maxRetryAfter)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
