package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for one pipeline stage.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   prometheus.Counter
	RequestDuration prometheus.Histogram
	ItemsTotal      prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry,
// labelled with the owning stage.
func NewMetrics(stage string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"stage": stage}

	requests := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "rentscrape_requests_total",
			Help:        "Total HTTP requests issued by the stage.",
			ConstLabels: constLabels,
		},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "rentscrape_request_duration_seconds",
			Help:        "HTTP request latency for stage requests.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
	)
	items := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "rentscrape_items_total",
			Help:        "Total number of records handled by the stage.",
			ConstLabels: constLabels,
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "rentscrape_errors_total",
			Help:        "Total number of stage errors by type.",
			ConstLabels: constLabels,
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, items, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ItemsTotal:      items,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest() {
	if m == nil {
		return
	}
	m.RequestsTotal.Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItems increments the handled-records counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
