// Package storyapi is a client for the remote story service REST API.
package storyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/onnwee/storyreader/internal/apierr"
	"github.com/onnwee/storyreader/internal/authstore"
	"github.com/onnwee/storyreader/internal/circuitbreaker"
	"github.com/onnwee/storyreader/internal/config"
	"github.com/onnwee/storyreader/internal/errorreporting"
	"github.com/onnwee/storyreader/internal/httpx"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/metrics"
	"github.com/onnwee/storyreader/internal/tracing"
)

const (
	defaultBaseURL  = "http://localhost:8080"
	maxResponseBody = 8 << 20
)

// Options configures a Client. Zero values fall back to sensible defaults.
type Options struct {
	BaseURL     string
	UserAgent   string
	HTTPClient  *http.Client
	MaxAttempts int
	RetryBase   time.Duration
	LogRetries  bool
	// Sessions supplies the bearer token; nil sends anonymous requests.
	Sessions authstore.Store
	Limiter  *rate.Limiter
	Breaker  *circuitbreaker.CircuitBreaker
	// OnUnauthorized runs after any 401 response.
	OnUnauthorized func()
}

// OptionsFromConfig builds Options from the environment configuration.
func OptionsFromConfig(cfg *config.Config, sessions authstore.Store) Options {
	opts := Options{
		BaseURL:     cfg.APIBaseURL,
		UserAgent:   cfg.UserAgent,
		HTTPClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		MaxAttempts: cfg.HTTPMaxRetries,
		RetryBase:   cfg.HTTPRetryBase,
		LogRetries:  cfg.LogHTTPRetries,
		Sessions:    sessions,
	}
	if cfg.APIRPS > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.APIRPS), max(cfg.APIBurst, 1))
	}
	opts.Breaker = circuitbreaker.New(circuitbreaker.Config{
		Name:             "storyapi",
		FailureThreshold: cfg.BreakerFailures,
		Timeout:          cfg.BreakerTimeout,
		IsFailure:        IsServiceFailure,
	})
	return opts
}

// Client talks to the story service.
type Client struct {
	base      *url.URL
	userAgent string
	retrier   *httpx.Retrier
	sessions  authstore.Store
	breaker   *circuitbreaker.CircuitBreaker
	onUnauth  func()
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(opts.BaseURL, "/")
	if raw == "" {
		raw = defaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("storyapi: invalid base URL %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "storyreader/0.1"
	}

	r := &httpx.Retrier{
		Client:      hc,
		MaxAttempts: opts.MaxAttempts,
		BaseDelay:   opts.RetryBase,
		LogRetries:  opts.LogRetries,
	}
	if lim := opts.Limiter; lim != nil {
		r.Pre = func(ctx context.Context, attempt int) error {
			if lim.Tokens() < 1 {
				metrics.StoryAPIRateLimitWaits.Inc()
			}
			return lim.Wait(ctx)
		}
	}

	return &Client{
		base:      base,
		userAgent: ua,
		retrier:   r,
		sessions:  opts.Sessions,
		breaker:   opts.Breaker,
		onUnauth:  opts.OnUnauthorized,
	}, nil
}

// BaseURL returns the service root the client was configured with.
func (c *Client) BaseURL() string { return c.base.String() }

// IsServiceFailure reports whether err says the story service itself is
// unhealthy, as opposed to rejecting this particular request.
func IsServiceFailure(err error) bool {
	var e *apierr.Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Code {
	case apierr.ErrUpstreamFailed, apierr.ErrSystemUnavailable, apierr.ErrUpstreamBadResponse:
		return true
	}
	return false
}

// request describes one API call.
type request struct {
	op     string // metric and span label
	method string
	path   string
	query  url.Values
	body   any
	out    any
	// anonymous skips the bearer token (login, register)
	anonymous bool
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, request{op: op, method: http.MethodGet, path: path, query: query, out: out})
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	return c.do(ctx, request{op: op, method: method, path: path, query: query, body: body, out: out})
}

func (c *Client) do(ctx context.Context, req request) (err error) {
	ctx, span := tracing.StartSpan(ctx, "storyapi."+req.op, trace.WithAttributes(
		attribute.String("http.method", req.method),
		attribute.String("storyapi.path", req.path),
	))
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.StoryAPIOperationDuration.WithLabelValues(req.op, status).Observe(time.Since(start).Seconds())
		tracing.EndWithError(span, err)
	}()

	call := func(ctx context.Context) error { return c.roundTrip(ctx, req) }
	if c.breaker == nil {
		return call(ctx)
	}
	err = c.breaker.Execute(ctx, call)
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return fmt.Errorf("storyapi %s: %w: %w", req.op, apierr.SystemUnavailable("Story service temporarily unavailable"), err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, req request) error {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return fmt.Errorf("storyapi %s: encode request: %w", req.op, err)
		}
	}
	target := c.base.JoinPath(req.path)
	if len(req.query) > 0 {
		target.RawQuery = req.query.Encode()
	}

	token := ""
	if !req.anonymous && c.sessions != nil {
		s, err := c.sessions.Load(ctx)
		if err != nil && !errors.Is(err, authstore.ErrNoSession) {
			return fmt.Errorf("storyapi %s: load session: %w", req.op, err)
		}
		token = s.Token
	}

	resp, err := c.retrier.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		r, err := http.NewRequestWithContext(ctx, req.method, target.String(), body)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Accept", "application/json")
		r.Header.Set("User-Agent", c.userAgent)
		if payload != nil {
			r.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		return r, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("storyapi %s: %w (%v)", req.op, apierr.SystemUnavailable("Story service unreachable"), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("storyapi %s: %w (%v)", req.op, apierr.UpstreamBadResponse(""), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(ctx, req, resp.StatusCode, data)
	}
	if req.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, req.out); err != nil {
		return fmt.Errorf("storyapi %s: %w (%v)", req.op, apierr.UpstreamBadResponse(""), err)
	}
	return nil
}

func (c *Client) statusError(ctx context.Context, req request, status int, body []byte) error {
	apiErr := apierr.FromUpstreamStatus(status, serverMessage(body))
	if status == http.StatusUnauthorized {
		metrics.StoryAPIUnauthorized.Inc()
		logger.WarnContext(ctx, "Unauthorized, token invalid or expired", "operation", req.op)
		errorreporting.AddBreadcrumb("storyapi", "401 on "+req.op, sentry.LevelWarning)
		if c.onUnauth != nil {
			c.onUnauth()
		}
	}
	return fmt.Errorf("storyapi %s: %w", req.op, apiErr)
}

// serverMessage extracts the human-readable text from an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func pathEscape(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.Join(escaped, "/")
}
