package sink

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyStats is a snapshot of one latency histogram's distribution,
// computed on demand (spec §4.6: "min/avg/p90/p95/p99/max are computed at
// shutdown").
type LatencyStats struct {
	Count int
	Min   time.Duration
	Avg   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// latencyHistogram is a per-writer latency recorder. It double-books every
// sample: into a prometheus.Histogram for live scraping, and into an
// in-memory slice so percentiles can be computed exactly at shutdown —
// prometheus.Histogram only exposes bucket counts, not raw quantiles, and
// the teacher's own workload/histogram package (which does this) was not
// present in the retrieved pack (see DESIGN.md).
type latencyHistogram struct {
	mu      sync.Mutex
	samples []time.Duration
	prom    prometheus.Histogram
}

func newLatencyHistogram(name, help string, reg prometheus.Registerer) *latencyHistogram {
	h := &latencyHistogram{
		prom: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 20), // seconds
		}),
	}
	if reg != nil {
		reg.MustRegister(h.prom)
	}
	return h
}

func (h *latencyHistogram) addSample(d time.Duration) {
	h.mu.Lock()
	h.samples = append(h.samples, d)
	h.mu.Unlock()
	h.prom.Observe(d.Seconds())
}

func (h *latencyHistogram) snapshot() LatencyStats {
	h.mu.Lock()
	samples := make([]time.Duration, len(h.samples))
	copy(samples, h.samples)
	h.mu.Unlock()

	if len(samples) == 0 {
		return LatencyStats{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	return LatencyStats{
		Count: len(samples),
		Min:   samples[0],
		Avg:   sum / time.Duration(len(samples)),
		P90:   percentile(samples, 0.90),
		P95:   percentile(samples, 0.95),
		P99:   percentile(samples, 0.99),
		Max:   samples[len(samples)-1],
	}
}

// percentile expects sorted ascending samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
