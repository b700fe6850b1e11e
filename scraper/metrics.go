package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the synchronizer.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	ItemsTotal        *prometheus.CounterVec
	RowsInsertedTotal prometheus.Counter
	RowsDroppedTotal  *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hal_requests_total",
			Help: "Total upstream HTTP requests by exchange step.",
		},
		[]string{"step"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hal_request_duration_seconds",
			Help:    "Upstream HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hal_retries_total",
			Help: "Total number of fetch retries performed.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hal_fetch_errors_total",
			Help: "Total failed fetch attempts by error type.",
		},
		[]string{"error_type"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hal_items_total",
			Help: "Work items finished by ledger status.",
		},
		[]string{"status"},
	)
	rowsInserted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hal_rows_inserted_total",
			Help: "Price rows newly stored.",
		},
	)
	rowsDropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hal_rows_dropped_total",
			Help: "Scraped rows dropped during normalization by reason.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, items, rowsInserted, rowsDropped)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		ItemsTotal:        items,
		RowsInsertedTotal: rowsInserted,
		RowsDroppedTotal:  rowsDropped,
	}
}

// IncRequest increments the requests counter for an exchange step.
func (m *Metrics) IncRequest(step string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(step).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(step).Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncItem counts a finished work item.
func (m *Metrics) IncItem(status string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(status).Inc()
}

// AddInserted adds newly stored rows.
func (m *Metrics) AddInserted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsInsertedTotal.Add(float64(n))
}

// AddDropped adds rows dropped for reason.
func (m *Metrics) AddDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsDroppedTotal.WithLabelValues(reason).Add(float64(n))
}
