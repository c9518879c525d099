// Package metrics collects in-process review metrics and exports them as
// JSON or Prometheus text.
package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metric names recorded by the reviewer.
const (
	ReviewsTotal        = "prreviewer_reviews_total"
	ReviewFailuresTotal = "prreviewer_review_failures_total"
	ReviewsSkipped      = "prreviewer_reviews_skipped_total"
	IssuesFoundTotal    = "prreviewer_issues_found_total"
	FilesAnalyzedTotal  = "prreviewer_files_analyzed_total"
	ReviewDuration      = "prreviewer_review_duration"
	RemoteDuration      = "prreviewer_remote_analysis_duration"
	QueueDepth          = "prreviewer_queue_depth"
	ReviewsInFlight     = "prreviewer_reviews_in_flight"
	WebhooksReceived    = "prreviewer_webhooks_received_total"
)

const defaultWindow = 1000

// Collector collects and manages metrics.
type Collector struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add adds n to the counter.
func (c *Counter) Add(n int64) { c.value.Add(n) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge represents a value that can go up or down.
type Gauge struct {
	mu    sync.Mutex
	value float64
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Add adds v to the gauge; use a negative v to decrease it.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

type point struct {
	at    time.Time
	value float64
}

// Histogram keeps the most recent observations of a value.
type Histogram struct {
	mu     sync.Mutex
	points []point
	max    int
	now    func() time.Time
}

// NewHistogram creates a histogram that retains up to maxValues points.
func NewHistogram(maxValues int) *Histogram {
	return &Histogram{
		points: make([]point, 0, maxValues),
		max:    maxValues,
		now:    time.Now,
	}
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.points) >= h.max {
		h.points = h.points[1:]
	}
	h.points = append(h.points, point{at: h.now(), value: v})
}

// Time records the seconds elapsed since start.
func (h *Histogram) Time(start time.Time) time.Duration {
	d := time.Since(start)
	h.Observe(d.Seconds())
	return d
}

// AverageSince returns the mean of the values observed within window, or
// false when there are none. A zero window averages everything retained.
func (h *Histogram) AverageSince(window time.Duration) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var cutoff time.Time
	if window > 0 {
		cutoff = h.now().Add(-window)
	}

	var sum float64
	var n int
	for _, p := range h.points {
		if p.at.Before(cutoff) {
			continue
		}
		sum += p.value
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Stats returns histogram statistics.
func (h *Histogram) Stats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.points)
	if n == 0 {
		return HistogramStats{}
	}

	sorted := make([]float64, n)
	var sum float64
	for i, p := range h.points {
		sorted[i] = p.value
		sum += p.value
	}
	sort.Float64s(sorted)

	return HistogramStats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Avg:    sum / float64(n),
		Latest: h.points[n-1].value,
		P50:    sorted[(n-1)*50/100],
		P90:    sorted[(n-1)*90/100],
		P99:    sorted[(n-1)*99/100],
	}
}

// HistogramStats contains histogram statistics.
type HistogramStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"average"`
	Latest float64 `json:"latest"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
}

// Counter returns or creates a counter.
func (c *Collector) Counter(name string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.counters[name]; ok {
		return counter
	}
	counter := &Counter{}
	c.counters[name] = counter
	return counter
}

// Gauge returns or creates a gauge.
func (c *Collector) Gauge(name string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gauge, ok := c.gauges[name]; ok {
		return gauge
	}
	gauge := &Gauge{}
	c.gauges[name] = gauge
	return gauge
}

// Histogram returns or creates a histogram.
func (c *Collector) Histogram(name string) *Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hist, ok := c.histograms[name]; ok {
		return hist
	}
	hist := NewHistogram(defaultWindow)
	c.histograms[name] = hist
	return hist
}

// Uptime returns the duration since the collector was created.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Summary returns count/average/min/max/latest for every histogram with
// at least one observation.
func (c *Collector) Summary() map[string]HistogramStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]HistogramStats, len(c.histograms))
	for name, hist := range c.histograms {
		if stats := hist.Stats(); stats.Count > 0 {
			out[name] = stats
		}
	}
	return out
}

// Snapshot is a point-in-time copy of every metric.
type Snapshot struct {
	Uptime     string                    `json:"uptime"`
	Counters   map[string]int64          `json:"counters"`
	Gauges     map[string]float64        `json:"gauges"`
	Histograms map[string]HistogramStats `json:"histograms"`
}

// Snapshot copies the current values.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Counters:   make(map[string]int64, len(c.counters)),
		Gauges:     make(map[string]float64, len(c.gauges)),
		Histograms: make(map[string]HistogramStats, len(c.histograms)),
	}
	for name, counter := range c.counters {
		snap.Counters[name] = counter.Value()
	}
	for name, gauge := range c.gauges {
		snap.Gauges[name] = gauge.Value()
	}
	for name, hist := range c.histograms {
		snap.Histograms[name] = hist.Stats()
	}
	return snap
}

// Export exports metrics to JSON.
func (c *Collector) Export() ([]byte, error) {
	return json.MarshalIndent(c.Snapshot(), "", "  ")
}

// ExportPrometheus exports metrics in Prometheus text format, sorted by name.
// Histograms are exported as summaries with a _seconds suffix.
func (c *Collector) ExportPrometheus() string {
	snap := c.Snapshot()
	var sb strings.Builder

	for _, name := range sortedKeys(snap.Counters) {
		fmt.Fprintf(&sb, "# TYPE %s counter\n", name)
		fmt.Fprintf(&sb, "%s %d\n", name, snap.Counters[name])
	}
	for _, name := range sortedKeys(snap.Gauges) {
		fmt.Fprintf(&sb, "# TYPE %s gauge\n", name)
		fmt.Fprintf(&sb, "%s %f\n", name, snap.Gauges[name])
	}
	for _, name := range sortedKeys(snap.Histograms) {
		stats := snap.Histograms[name]
		fmt.Fprintf(&sb, "# TYPE %s_seconds summary\n", name)
		fmt.Fprintf(&sb, "%s_seconds_count %d\n", name, stats.Count)
		fmt.Fprintf(&sb, "%s_seconds{quantile=\"0.5\"} %f\n", name, stats.P50)
		fmt.Fprintf(&sb, "%s_seconds{quantile=\"0.9\"} %f\n", name, stats.P90)
		fmt.Fprintf(&sb, "%s_seconds{quantile=\"0.99\"} %f\n", name, stats.P99)
	}

	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
