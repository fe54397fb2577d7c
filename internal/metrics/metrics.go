// Package metrics holds the prometheus collectors of the crawler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector. A nil *Metrics ignores all updates.
type Metrics struct {
	Admissions      *prometheus.CounterVec
	Pages           *prometheus.CounterVec
	LinksDiscovered prometheus.Counter
	FetchErrors     prometheus.Counter
	FetchDuration   prometheus.Histogram
	QueueDepth      prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spacetime_admissions_total",
			Help: "Admission decisions for discovered links.",
		}, []string{"decision", "reason"}),
		Pages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spacetime_pages_total",
			Help: "Pages processed by outcome.",
		}, []string{"outcome"}),
		LinksDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "spacetime_links_discovered_total",
			Help: "Links extracted from useful pages before admission.",
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "spacetime_fetch_errors_total",
			Help: "Fetches that failed before a response was received.",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "spacetime_fetch_duration_seconds",
			Help:    "Duration of page fetches.",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spacetime_queue_depth",
			Help: "Requests waiting in the crawl queue.",
		}),
	}
}

// ObserveAdmission counts one admission decision.
func (m *Metrics) ObserveAdmission(admitted bool, reason string) {
	if m == nil {
		return
	}
	decision := "rejected"
	if admitted {
		decision = "admitted"
	}
	m.Admissions.WithLabelValues(decision, reason).Inc()
}

// ObservePage counts one processed page.
func (m *Metrics) ObservePage(outcome string) {
	if m == nil {
		return
	}
	m.Pages.WithLabelValues(outcome).Inc()
}

// AddLinks counts links extracted from a useful page.
func (m *Metrics) AddLinks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LinksDiscovered.Add(float64(n))
}

// ObserveFetch records a fetch duration and whether it failed.
func (m *Metrics) ObserveFetch(seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(seconds)
	if failed {
		m.FetchErrors.Inc()
	}
}

// SetQueueDepth reports the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
