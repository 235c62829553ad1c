package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/forcegraph/backend/internal/cache"
	"github.com/onnwee/forcegraph/backend/internal/logger"
)

// StatsSource is anything that reports cache statistics.
type StatsSource interface {
	Stats() cache.Stats
}

// Collector periodically copies cache statistics into Prometheus gauges.
type Collector struct {
	source   StatsSource
	endpoint string
	interval time.Duration
	stop     chan struct{}
	once     sync.Once

	lastEvictions uint64
}

// NewCollector creates a collector that reports source under the endpoint label.
func NewCollector(source StatsSource, endpoint string, interval time.Duration) *Collector {
	return &Collector{
		source:   source,
		endpoint: endpoint,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the collection loop. It blocks until Stop or ctx is done.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()

	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the collector. Safe to call more than once.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Collect takes one sample.
func (c *Collector) Collect() {
	if c.source == nil {
		logger.WithComponent("metrics").Warn("no stats source configured", "endpoint", c.endpoint)
		MetricsCollectionErrors.WithLabelValues("cache").Inc()
		return
	}
	stats := c.source.Stats()
	APICacheSize.WithLabelValues(c.endpoint).Set(float64(stats.Size))
	APICacheItems.WithLabelValues(c.endpoint).Set(float64(stats.Items))

	// Evictions is cumulative in the source; only add what is new.
	if stats.Evictions > c.lastEvictions {
		APICacheEvictions.WithLabelValues(c.endpoint).Add(float64(stats.Evictions - c.lastEvictions))
	}
	c.lastEvictions = stats.Evictions
}
