// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dexer"

// Metrics holds all pipeline metrics.
type Metrics struct {
	// Counters
	WebhookEventsReceived *prometheus.CounterVec
	WebhookEventsRejected *prometheus.CounterVec
	Deliveries            *prometheus.CounterVec
	RecordsWritten        *prometheus.CounterVec
	ProvisioningAttempts  *prometheus.CounterVec

	// Histograms
	ProcessingDuration *prometheus.HistogramVec

	registry *prometheus.Registry
	enabled  bool
}

// New creates a metrics instance on its own registry.
// A disabled instance accepts every call and records nothing.
func New(enabled bool) *Metrics {
	m := &Metrics{
		enabled:  enabled,
		registry: prometheus.NewRegistry(),
	}

	if !enabled {
		return m
	}

	m.WebhookEventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_received_total",
			Help:      "Webhook events accepted and enqueued by job type",
		},
		[]string{"job_type"},
	)

	m.WebhookEventsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_rejected_total",
			Help:      "Webhook events rejected at ingress by reason",
		},
		[]string{"reason"}, // "unauthorized", "bad_request", "unknown_job", "job_status", "enqueue_failed"
	)

	m.Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_deliveries_total",
			Help:      "Queue deliveries handled by queue and outcome",
		},
		[]string{"queue", "outcome"}, // "ack", "retry", "dropped", "failed"
	)

	m.RecordsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Rows upserted or deleted in tenant tables by job type",
		},
		[]string{"job_type"},
	)

	m.ProvisioningAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_provisioning_attempts_total",
			Help:      "Provider webhook calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	m.ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time to process one queued webhook event",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"job_type"},
	)

	m.registry.MustRegister(
		m.WebhookEventsReceived,
		m.WebhookEventsRejected,
		m.Deliveries,
		m.RecordsWritten,
		m.ProvisioningAttempts,
		m.ProcessingDuration,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NewServer builds the HTTP server for a standalone metrics listener with /metrics and /health.
// The caller starts and shuts it down.
func (m *Metrics) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// IsEnabled returns true if metrics are enabled.
func (m *Metrics) IsEnabled() bool {
	return m != nil && m.enabled
}

// RecordWebhookReceived counts an enqueued webhook event.
func (m *Metrics) RecordWebhookReceived(jobType string) {
	if m.IsEnabled() {
		m.WebhookEventsReceived.WithLabelValues(jobType).Inc()
	}
}

// RecordWebhookRejected counts a webhook event turned away at ingress.
func (m *Metrics) RecordWebhookRejected(reason string) {
	if m.IsEnabled() {
		m.WebhookEventsRejected.WithLabelValues(reason).Inc()
	}
}

// RecordDelivery counts one handled queue delivery.
func (m *Metrics) RecordDelivery(queue, outcome string) {
	if m.IsEnabled() {
		m.Deliveries.WithLabelValues(queue, outcome).Inc()
	}
}

// RecordRecordsWritten adds to the rows written for a job type.
func (m *Metrics) RecordRecordsWritten(jobType string, count int) {
	if m.IsEnabled() && count > 0 {
		m.RecordsWritten.WithLabelValues(jobType).Add(float64(count))
	}
}

// RecordProvisioningAttempt counts one provider call.
func (m *Metrics) RecordProvisioningAttempt(op, outcome string) {
	if m.IsEnabled() {
		m.ProvisioningAttempts.WithLabelValues(op, outcome).Inc()
	}
}

// RecordProcessingDuration records how long one event took.
func (m *Metrics) RecordProcessingDuration(jobType string, d time.Duration) {
	if m.IsEnabled() {
		m.ProcessingDuration.WithLabelValues(jobType).Observe(d.Seconds())
	}
}
