package metrics

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func read(t *testing.T, m prometheus.Metric) *dto.Metric {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("read metric: %v", err)
	}
	return &out
}

func TestCollector_ReportsItemsAndEvictionDeltas(t *testing.T) {
	samples := []StoreSample{
		{Items: 3, Evictions: 0},
		{Items: 5, Evictions: 2},
		{Items: 4, Evictions: 7},
	}
	i := 0
	c := NewCollector("collector-test", func() StoreSample { s := samples[i]; i++; return s }, time.Hour)

	for range samples {
		c.collect()
	}
	if got := read(t, StoreItems.WithLabelValues("collector-test")).GetGauge().GetValue(); got != 4 {
		t.Fatalf("items gauge = %v, want 4", got)
	}
	if got := read(t, StoreEvictions.WithLabelValues("collector-test")).GetCounter().GetValue(); got != 7 {
		t.Fatalf("evictions counter = %v, want 7", got)
	}
}

func TestCollector_StopEndsLoop(t *testing.T) {
	var calls atomic.Int32
	c := NewCollector("collector-stop", func() StoreSample {
		calls.Add(1)
		return StoreSample{}
	}, time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	c.Stop()
	c.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	if calls.Load() == 0 {
		t.Fatal("collector never sampled")
	}
}

func TestCollector_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector("collector-ctx", func() StoreSample { return StoreSample{} }, time.Hour)

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector ignored context cancellation")
	}
}
