package readcache

import (
	"context"
	"time"

	"github.com/onnwee/storyreader/internal/metrics"
)

// State is the lifecycle position of one key.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateFresh
	StateStale
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is what a caller can render for a key: the last known value,
// whether a load is outstanding, and the failure of the last load if it failed.
type Result struct {
	Key      string    `json:"key"`
	Value    any       `json:"value,omitempty"`
	Loading  bool      `json:"loading"`
	Err      error     `json:"-"`
	State    State     `json:"state"`
	StoredAt time.Time `json:"storedAt,omitempty"`
}

// snapshotLocked derives the Result for key as seen with ttl.
// An outstanding call wins, then a fresh entry, then a remembered failure.
func (c *Cache) snapshotLocked(key string, ttl time.Duration) Result {
	r := Result{Key: key}
	e, ok := c.store.Get(key)
	if ok {
		r.Value = e.Value
		r.StoredAt = e.StoredAt
	}
	switch {
	case c.inflight[key] != nil:
		r.State = StateLoading
		r.Loading = true
	case ok && e.FreshAt(c.now(), ttl):
		r.State = StateFresh
	case c.failures[key] != nil:
		r.State = StateFailed
		r.Err = c.failures[key]
	case ok:
		r.State = StateStale
	default:
		r.State = StateEmpty
	}
	return r
}

// Subscription delivers every state change of one key on C. C holds at most
// one pending Result; a newer one replaces an unread older one. C is closed by
// Close or when the cache closes.
type Subscription struct {
	C <-chan Result

	ch       chan Result
	cache    *Cache
	key      string
	producer Producer
	ttl      time.Duration
	active   bool // guarded by cache.mu
}

// Subscribe registers interest in key. The current state is delivered at once,
// and a load is started unless a fresh entry exists.
func (c *Cache) Subscribe(key string, producer Producer, ttl time.Duration) (*Subscription, error) {
	ttl, err := c.resolveTTL(ttl)
	if err != nil {
		return nil, err
	}
	if producer == nil {
		return nil, ErrNoProducer
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if _, fresh := c.freshLocked(key, ttl); !fresh {
		c.acquireLocked(context.Background(), key, producer)
	}

	s := &Subscription{
		ch:       make(chan Result, 1),
		cache:    c,
		key:      key,
		producer: producer,
		ttl:      ttl,
		active:   true,
	}
	s.C = s.ch
	set := c.subs[key]
	if set == nil {
		set = make(map[*Subscription]struct{})
		c.subs[key] = set
	}
	set[s] = struct{}{}
	metrics.ReadCacheSubscriptions.WithLabelValues(c.name).Inc()

	s.deliverLocked(c.snapshotLocked(key, ttl))
	return s, nil
}

// Key returns the subscribed key.
func (s *Subscription) Key() string { return s.key }

// Refresh asks the cache to bring the key up to date. Nothing is fetched while
// the entry is fresh; otherwise a load starts and its outcome arrives on C.
func (s *Subscription) Refresh() Result {
	s.cache.mu.Lock()
	active := s.active
	s.cache.mu.Unlock()
	if !active {
		return Result{Key: s.key, Err: ErrClosed}
	}
	return s.cache.Load(s.key, s.producer, s.ttl)
}

// Close stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.active {
		return
	}
	if set := c.subs[s.key]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(c.subs, s.key)
		}
	}
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if !s.active {
		return
	}
	s.active = false
	close(s.ch)
	metrics.ReadCacheSubscriptions.WithLabelValues(s.cache.name).Dec()
}

// deliverLocked hands r to the subscriber, replacing any unread Result.
// Only callers holding cache.mu send, so after draining there is room.
func (s *Subscription) deliverLocked(r Result) {
	if !s.active {
		return
	}
	select {
	case s.ch <- r:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- r
	}
}

// publishLocked pushes the current state of key to its subscribers.
func (c *Cache) publishLocked(key string) {
	for s := range c.subs[key] {
		s.deliverLocked(c.snapshotLocked(key, s.ttl))
	}
}
