package metrics

import (
	"context"
	"sync"
	"time"
)

// StoreSample is one reading of a cache store: entries held and the
// running total of capacity evictions.
type StoreSample struct {
	Items     int64
	Evictions uint64
}

// Collector periodically samples a cache store into the store gauges.
type Collector struct {
	cache    string
	sample   func() StoreSample
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once

	lastEvictions uint64
}

// NewCollector creates a collector reporting under the cache label.
func NewCollector(cache string, sample func() StoreSample, interval time.Duration) *Collector {
	return &Collector{
		cache:    cache,
		sample:   sample,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Collect initial metrics
	c.collect()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector. It may be called more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// collect is only called from Start's goroutine.
func (c *Collector) collect() {
	s := c.sample()
	StoreItems.WithLabelValues(c.cache).Set(float64(s.Items))
	// stores report a running total; the counter takes the delta
	if s.Evictions > c.lastEvictions {
		StoreEvictions.WithLabelValues(c.cache).Add(float64(s.Evictions - c.lastEvictions))
	}
	c.lastEvictions = s.Evictions
}
