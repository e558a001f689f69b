package readcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// next reads one Result from s or fails after a timeout.
func next(t *testing.T, s *Subscription) Result {
	t.Helper()
	select {
	case r, ok := <-s.C:
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription result")
	}
	return Result{}
}

// until reads Results from s until one has the wanted state.
func until(t *testing.T, s *Subscription, want State) Result {
	t.Helper()
	for {
		r := next(t, s)
		if r.State == want {
			return r
		}
	}
}

func TestSubscribe_LoadingThenFresh(t *testing.T) {
	c, _ := newTestCache(t)
	gate := make(chan struct{})
	p := func(ctx context.Context) (any, error) {
		<-gate
		return "chapter one", nil
	}

	sub, err := c.Subscribe("story-1-chapter-1", p, time.Minute)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if r := next(t, sub); r.State != StateLoading || !r.Loading {
		t.Fatalf("expected loading first, got %+v", r)
	}

	close(gate)
	r := until(t, sub, StateFresh)
	if r.Value != "chapter one" || r.Loading {
		t.Fatalf("unexpected fresh result %+v", r)
	}
	if sub.Key() != "story-1-chapter-1" {
		t.Fatalf("unexpected key %q", sub.Key())
	}
}

func TestSubscribe_SeesInvalidationAndReload(t *testing.T) {
	c, _ := newTestCache(t)
	var calls atomic.Int32
	p := countingProducer("v", &calls)

	if _, err := c.Get(context.Background(), "k", p, time.Minute); err != nil {
		t.Fatalf("Get: %v", err)
	}

	sub, err := c.Subscribe("k", p, time.Minute)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if r := next(t, sub); r.State != StateFresh {
		t.Fatalf("expected fresh on subscribe, got %v", r.State)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("subscribing to a fresh key must not fetch, calls = %d", got)
	}

	c.Invalidate("k")
	if r := next(t, sub); r.State != StateEmpty {
		t.Fatalf("expected empty after invalidate, got %v", r.State)
	}

	sub.Refresh()
	until(t, sub, StateFresh)
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected refresh to refetch, calls = %d", got)
	}
}

func TestSubscribe_RefreshOnFreshEntryDoesNotFetch(t *testing.T) {
	c, _ := newTestCache(t)
	var calls atomic.Int32
	p := countingProducer("v", &calls)

	sub, err := c.Subscribe("k", p, time.Minute)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	until(t, sub, StateFresh)

	r := sub.Refresh()
	if r.State != StateFresh || r.Value != "v" {
		t.Fatalf("unexpected refresh result %+v", r)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("refresh of a fresh entry invoked the producer, calls = %d", got)
	}
}

func TestSubscribe_ReportsFailure(t *testing.T) {
	c, _ := newTestCache(t)
	boom := errors.New("upstream 500")

	sub, err := c.Subscribe("k", failingProducer(boom, new(atomic.Int32)), time.Minute)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	r := until(t, sub, StateFailed)
	if !errors.Is(r.Err, boom) {
		t.Fatalf("expected failure cause, got %v", r.Err)
	}
	if r.Value != nil {
		t.Fatalf("failed load must not produce a value, got %v", r.Value)
	}
}

func TestSubscription_Close(t *testing.T) {
	c, _ := newTestCache(t)
	sub, err := c.Subscribe("k", countingProducer("v", new(atomic.Int32)), time.Minute)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sub.Close()
	sub.Close()

	for range sub.C {
	}
	if r := sub.Refresh(); !errors.Is(r.Err, ErrClosed) {
		t.Fatalf("expected ErrClosed from closed subscription, got %v", r.Err)
	}
	if n := c.Stats().Subscriptions; n != 0 {
		t.Fatalf("expected no subscriptions, got %d", n)
	}
}

func TestCacheClose_ClosesSubscriptions(t *testing.T) {
	c := New(WithName(t.Name()))
	sub, err := c.Subscribe("k", countingProducer("v", new(atomic.Int32)), time.Minute)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	c.Close()

	done := make(chan struct{})
	go func() {
		for range sub.C {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel not closed by cache Close")
	}

	if _, err := c.Subscribe("k", countingProducer("v", new(atomic.Int32)), time.Minute); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
