package metrics

import (
	"time"
)

// LedgerSizer reports how many keys the cooldown ledger holds
type LedgerSizer interface {
	Len() int
}

// DropCounter reports how many events were discarded
type DropCounter interface {
	Dropped() int64
}

// Collector periodically samples gauges that have no natural update point
type Collector struct {
	ledger   LedgerSizer
	events   DropCounter
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector. Either source may be nil.
func NewCollector(ledger LedgerSizer, events DropCounter) *Collector {
	return &Collector{
		ledger:   ledger,
		events:   events,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
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

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.ledger != nil {
		DebounceKeys.Set(float64(c.ledger.Len()))
	}
	if c.events != nil {
		EventsDropped.Set(float64(c.events.Dropped()))
	}
}
