package metrics

import "time"

// IndexStats is the subset of *indexcore.Index Collector samples. Defined
// here rather than importing pkg/indexcore so the dependency between the
// two packages stays one-directional: indexcore calls the package-level
// metrics vars directly on its own commit paths, and would cycle back if
// this package also imported indexcore's type.
type IndexStats interface {
	DocumentCount() (uint64, error)
	FileSizeBytes() (int64, error)
}

// Collector periodically samples an Index's size and populates the
// corresponding gauges, the way a long-lived embedder process would
// expose them on its own /metrics endpoint.
type Collector struct {
	index  IndexStats
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector for index.
func NewCollector(index IndexStats) *Collector {
	return &Collector{
		index:  index,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second interval, with an
// immediate first collection.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if n, err := c.index.DocumentCount(); err == nil {
		DocumentsTotal.Set(float64(n))
	}
	if size, err := c.index.FileSizeBytes(); err == nil {
		IndexSizeBytes.Set(float64(size))
	}
}
