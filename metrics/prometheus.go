// Package metrics exports cache and warmer events to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krisalay/warmcache/types"
)

// Prometheus implements types.Metrics with Prometheus collectors.
type Prometheus struct {
	// Cache metrics
	Hits         prometheus.Counter
	Misses       prometheus.Counter
	Evictions    prometheus.Counter
	Expirations  prometheus.Counter
	LoadFailures prometheus.Counter

	// Warmer metrics
	WarmPasses       prometheus.Counter
	WarmAttempts     prometheus.Counter
	WarmFailures     prometheus.Counter
	WarmPassDuration prometheus.Histogram
}

var _ types.Metrics = (*Prometheus)(nil)

// New registers the collectors on reg under namespace.
// Use a fresh prometheus.NewRegistry() per instance in tests; registering
// twice on the same registry panics.
func New(reg prometheus.Registerer, namespace string) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		Hits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Get-or-compute calls served from a fresh entry",
		}),
		Misses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Get-or-compute calls that ran the loader",
		}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries removed by invalidation or sweeping",
		}),
		Expirations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expirations_total",
			Help:      "Expired entries removed by the sweeper",
		}),
		LoadFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_load_failures_total",
			Help:      "Loader calls that returned an error or panicked",
		}),

		WarmPasses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_passes_total",
			Help:      "Completed warm passes",
		}),
		WarmAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_attempts_total",
			Help:      "Candidate keys attempted by warm passes",
		}),
		WarmFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_failures_total",
			Help:      "Candidate keys that failed to warm",
		}),
		WarmPassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "warm_pass_duration_seconds",
			Help:      "Warm pass duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Prometheus) Hit()        { m.Hits.Inc() }
func (m *Prometheus) Miss()       { m.Misses.Inc() }
func (m *Prometheus) Eviction()   { m.Evictions.Inc() }
func (m *Prometheus) Expire()     { m.Expirations.Inc() }
func (m *Prometheus) LoadFailed() { m.LoadFailures.Inc() }

// WarmPass records one finished warm pass.
func (m *Prometheus) WarmPass(d time.Duration, attempted, failed int) {
	m.WarmPasses.Inc()
	m.WarmAttempts.Add(float64(attempted))
	m.WarmFailures.Add(float64(failed))
	m.WarmPassDuration.Observe(d.Seconds())
}

// Handler returns an HTTP handler serving the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
