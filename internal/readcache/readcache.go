// Package readcache memoizes producer results per key. Freshness is evaluated
// lazily against a caller-supplied TTL, concurrent loads of one key share a
// single producer call, and results from superseded calls are never stored.
package readcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/storyreader/internal/cache"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/metrics"
	"github.com/onnwee/storyreader/internal/tracing"
)

// DefaultTTL applies when a caller passes a zero TTL and no WithDefaultTTL option was given.
const DefaultTTL = 5 * time.Minute

var (
	// ErrClosed is returned by operations on a closed Cache.
	ErrClosed = errors.New("readcache: cache is closed")
	// ErrInvalidTTL is returned for negative TTLs.
	ErrInvalidTTL = errors.New("readcache: ttl must not be negative")
	// ErrNoProducer is returned when a lookup that may need to fetch has no producer.
	ErrNoProducer = errors.New("readcache: producer is nil")
	// ErrTypeMismatch is returned by GetAs when the cached value has another type.
	ErrTypeMismatch = errors.New("readcache: cached value has unexpected type")
)

// Producer computes the authoritative value for a key.
type Producer func(ctx context.Context) (any, error)

// ProducerError wraps a producer failure. The cause is passed through untouched.
type ProducerError struct {
	Key string
	Seq uint64
	Err error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("readcache: producer for %q failed: %v", e.Key, e.Err)
}

func (e *ProducerError) Unwrap() error { return e.Err }

// Cache is a read-through cache over a cache.Store. The zero value is not usable; call New.
type Cache struct {
	name       string
	store      cache.Store
	defaultTTL time.Duration
	now        func() time.Time
	log        *slog.Logger

	mu       sync.Mutex
	seq      uint64
	inflight map[string]*call
	failures map[string]error
	subs     map[string]map[*Subscription]struct{}
	closed   bool

	hits      atomic.Uint64
	misses    atomic.Uint64
	joins     atomic.Uint64
	calls     atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
}

// call is one producer invocation. val and err are written before done is closed.
type call struct {
	key  string
	seq  uint64
	done chan struct{}
	val  any
	err  error
}

// Option configures a Cache.
type Option func(*Cache)

// WithName labels metrics and logs for this cache.
func WithName(name string) Option {
	return func(c *Cache) { c.name = name }
}

// WithStore replaces the default unbounded map store.
func WithStore(s cache.Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithDefaultTTL sets the TTL used when callers pass zero.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithClock overrides the time source used for entry timestamps and freshness.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		name:       "default",
		defaultTTL: DefaultTTL,
		now:        time.Now,
		inflight:   make(map[string]*call),
		failures:   make(map[string]error),
		subs:       make(map[string]map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = cache.NewMapStore()
	}
	c.log = logger.WithComponent("readcache").With("cache", c.name)
	return c
}

// Name returns the cache's label.
func (c *Cache) Name() string { return c.name }

// Closed reports whether Close has been called.
func (c *Cache) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Cache) resolveTTL(ttl time.Duration) (time.Duration, error) {
	if ttl < 0 {
		return 0, ErrInvalidTTL
	}
	if ttl == 0 {
		return c.defaultTTL, nil
	}
	return ttl, nil
}

// Get returns the value for key, invoking producer only when no fresh entry exists.
// Concurrent callers for the same key share one producer call. If ctx ends first,
// Get returns ctx.Err() while the producer keeps running and may still populate the entry.
// On producer failure Get returns the last known value (possibly stale, possibly nil)
// together with a *ProducerError; nothing is stored.
func (c *Cache) Get(ctx context.Context, key string, producer Producer, ttl time.Duration) (any, error) {
	ttl, err := c.resolveTTL(ttl)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if e, ok := c.freshLocked(key, ttl); ok {
		c.mu.Unlock()
		return e.Value, nil
	}
	if producer == nil {
		c.mu.Unlock()
		return nil, ErrNoProducer
	}
	cl := c.acquireLocked(ctx, key, producer)
	c.mu.Unlock()

	select {
	case <-cl.done:
	case <-ctx.Done():
		return c.lastKnown(key), ctx.Err()
	}
	if cl.err != nil {
		return c.lastKnown(key), cl.err
	}
	return cl.val, nil
}

// Load is the non-blocking form of Get. A fresh entry comes back with StateFresh.
// Otherwise a producer call is started (or joined) and the returned Result is
// Loading, carrying the last known value if any. The outcome reaches subscribers.
func (c *Cache) Load(key string, producer Producer, ttl time.Duration) Result {
	ttl, err := c.resolveTTL(ttl)
	if err != nil {
		return Result{Key: key, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{Key: key, Err: ErrClosed}
	}
	if e, ok := c.freshLocked(key, ttl); ok {
		return Result{Key: key, Value: e.Value, State: StateFresh, StoredAt: e.StoredAt}
	}
	if producer == nil {
		return Result{Key: key, Err: ErrNoProducer}
	}
	c.acquireLocked(context.Background(), key, producer)
	return c.snapshotLocked(key, ttl)
}

// Peek reports the state of key without fetching.
func (c *Cache) Peek(key string, ttl time.Duration) Result {
	ttl, err := c.resolveTTL(ttl)
	if err != nil {
		return Result{Key: key, Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(key, ttl)
}

// Invalidate drops the entry and any remembered failure for key. An outstanding
// producer call is detached rather than cancelled: its waiters still get its
// result, but it can no longer write the entry.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	c.store.Delete(key)
	delete(c.failures, key)
	cl, detached := c.inflight[key]
	delete(c.inflight, key)
	c.publishLocked(key)
	c.mu.Unlock()

	metrics.ReadCacheInvalidations.WithLabelValues(c.name, "key").Inc()
	if detached {
		c.log.Debug("invalidated key with call in flight", "key", key, "seq", cl.seq)
	}
}

// Clear drops every entry. Outstanding calls are detached as in Invalidate.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.store.Clear()
	c.failures = make(map[string]error)
	detached := len(c.inflight)
	c.inflight = make(map[string]*call)
	for key := range c.subs {
		c.publishLocked(key)
	}
	c.mu.Unlock()

	metrics.ReadCacheInvalidations.WithLabelValues(c.name, "all").Inc()
	c.log.Debug("cache cleared", "detached_calls", detached)
}

// Close disposes the cache. Subscriptions are closed, calls still in flight
// will not write, and the store is closed if it implements io.Closer.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.inflight = make(map[string]*call)
	for key, set := range c.subs {
		for s := range set {
			s.closeLocked()
		}
		delete(c.subs, key)
	}
	c.mu.Unlock()

	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// freshLocked returns the entry for key when it is within ttl, counting the hit.
func (c *Cache) freshLocked(key string, ttl time.Duration) (cache.Entry, bool) {
	e, ok := c.store.Get(key)
	if !ok || !e.FreshAt(c.now(), ttl) {
		return cache.Entry{}, false
	}
	c.hits.Add(1)
	metrics.ReadCacheRequests.WithLabelValues(c.name, "hit").Inc()
	return e, true
}

// acquireLocked joins the outstanding call for key or starts a new one.
func (c *Cache) acquireLocked(ctx context.Context, key string, producer Producer) *call {
	if cl, ok := c.inflight[key]; ok {
		c.joins.Add(1)
		metrics.ReadCacheRequests.WithLabelValues(c.name, "join").Inc()
		return cl
	}

	c.misses.Add(1)
	metrics.ReadCacheRequests.WithLabelValues(c.name, "miss").Inc()
	c.seq++
	cl := &call{key: key, seq: c.seq, done: make(chan struct{})}
	c.inflight[key] = cl
	c.publishLocked(key)

	// Callers leaving early must not abort a call other waiters share
	go c.run(context.WithoutCancel(ctx), cl, producer)
	return cl
}

func (c *Cache) run(ctx context.Context, cl *call, producer Producer) {
	ctx, span := tracing.StartSpan(ctx, "readcache.produce", trace.WithAttributes(
		attribute.String("cache.name", c.name),
		attribute.String("cache.key", cl.key),
		attribute.Int64("cache.seq", int64(cl.seq)),
	))
	start := time.Now()
	val, err := invoke(ctx, producer)
	metrics.ReadCacheProducerDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	tracing.EndWithError(span, err)

	c.complete(cl, val, err)
}

func invoke(ctx context.Context, producer Producer) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("producer panicked: %v", r)
		}
	}()
	return producer(ctx)
}

// complete applies a call's outcome if the call is still the latest one issued for its key.
func (c *Cache) complete(cl *call, val any, err error) {
	c.calls.Add(1)
	status := "success"
	if err != nil {
		status = "failure"
		c.failed.Add(1)
		err = &ProducerError{Key: cl.key, Seq: cl.seq, Err: err}
	}
	metrics.ReadCacheProducerCalls.WithLabelValues(c.name, status).Inc()

	c.mu.Lock()
	cur, ok := c.inflight[cl.key]
	current := ok && cur.seq == cl.seq
	if current {
		delete(c.inflight, cl.key)
		if err == nil {
			c.store.Set(cl.key, cache.Entry{Value: val, StoredAt: c.now()})
			delete(c.failures, cl.key)
		} else {
			c.failures[cl.key] = err
		}
		c.publishLocked(cl.key)
	} else {
		c.discarded.Add(1)
		metrics.ReadCacheDiscardedResults.WithLabelValues(c.name).Inc()
	}
	cl.val, cl.err = val, err
	close(cl.done)
	c.mu.Unlock()

	if !current {
		c.log.Debug("discarded superseded result", "key", cl.key, "seq", cl.seq)
	}
	if err != nil {
		c.log.Warn("producer failed", "key", cl.key, "seq", cl.seq, "error", err)
	}
}

// lastKnown returns the stored value for key regardless of freshness.
func (c *Cache) lastKnown(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.store.Get(key); ok {
		return e.Value
	}
	return nil
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Hits             uint64      `json:"hits"`
	Misses           uint64      `json:"misses"`
	Joins            uint64      `json:"joins"`
	ProducerCalls    uint64      `json:"producerCalls"`
	ProducerFailures uint64      `json:"producerFailures"`
	Discarded        uint64      `json:"discarded"`
	InFlight         int         `json:"inFlight"`
	Subscriptions    int         `json:"subscriptions"`
	Store            cache.Stats `json:"store"`
}

// Stats returns counters for this cache.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	inflight := len(c.inflight)
	subs := 0
	for _, set := range c.subs {
		subs += len(set)
	}
	c.mu.Unlock()

	return Stats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Joins:            c.joins.Load(),
		ProducerCalls:    c.calls.Load(),
		ProducerFailures: c.failed.Load(),
		Discarded:        c.discarded.Load(),
		InFlight:         inflight,
		Subscriptions:    subs,
		Store:            c.store.Stats(),
	}
}

// GetAs is Get for a producer of a concrete type.
func GetAs[V any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (V, error), ttl time.Duration) (V, error) {
	var zero V
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, ttl)
	if v == nil {
		return zero, err
	}
	typed, ok := v.(V)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrTypeMismatch, key, v)
	}
	return typed, err
}
