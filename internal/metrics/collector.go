// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector without requiring the heavy prometheus/client_golang
// dependency. It tracks pipeline counters and serves them in the text
// exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates named counters.
type Collector struct {
	mu        sync.RWMutex
	counters  map[string]*Counter
	startTime time.Time
}

func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]*Counter),
		startTime: time.Now(),
	}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Counter returns (registering on first use) the named counter.
func (col *Collector) Counter(name, help string) *Counter {
	col.mu.RLock()
	c, ok := col.counters[name]
	col.mu.RUnlock()
	if ok {
		return c
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	if c, ok := col.counters[name]; ok {
		return c
	}
	c = &Counter{name: name, help: help}
	col.counters[name] = c
	return c
}

// ServeHTTP writes all metrics in Prometheus text exposition format.
func (col *Collector) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	col.mu.RLock()
	names := make([]string, 0, len(col.counters))
	for name := range col.counters {
		names = append(names, name)
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, name := range names {
		c := col.counters[name]
		if c.help != "" {
			fmt.Fprintf(w, "# HELP %s %s\n", name, c.help)
		}
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n", name, c.Value())
	}
	col.mu.RUnlock()

	fmt.Fprintf(w, "# TYPE relaybot_uptime_seconds gauge\n")
	fmt.Fprintf(w, "relaybot_uptime_seconds %.0f\n", time.Since(col.startTime).Seconds())
}
