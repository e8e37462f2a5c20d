// Package metrics exposes Prometheus instrumentation for the publisher.
// All collectors live in a private registry so embedding applications
// never collide with pubship's metric names.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the publisher records into.
// A nil *Metrics is valid and records nothing, so callers never need to
// guard call sites.
type Metrics struct {
	registry *prometheus.Registry

	messagesPublished prometheus.Counter
	batchesPublished  prometheus.Counter
	bytesPublished    prometheus.Counter
	messagesDropped   prometheus.Counter
	sendRetries       prometheus.Counter
	publishDuration   prometheus.Histogram
	batchMessages     prometheus.Histogram
}

// New creates a Metrics with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		messagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubship_messages_published_total",
			Help: "Messages acknowledged by the remote service",
		}),
		batchesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubship_batches_published_total",
			Help: "Batches acknowledged by the remote service",
		}),
		bytesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubship_bytes_published_total",
			Help: "Serialized bytes acknowledged by the remote service",
		}),
		messagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubship_messages_dropped_total",
			Help: "Messages dropped after retry exhaustion or fatal send errors",
		}),
		sendRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubship_send_retries_total",
			Help: "Send attempts retried after a transient failure",
		}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pubship_publish_duration_seconds",
			Help:    "Wall time from first send attempt to acknowledgement",
			Buckets: prometheus.DefBuckets,
		}),
		batchMessages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pubship_batch_messages",
			Help:    "Messages per dispatched batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	registry.MustRegister(
		m.messagesPublished,
		m.batchesPublished,
		m.bytesPublished,
		m.messagesDropped,
		m.sendRetries,
		m.publishDuration,
		m.batchMessages,
	)

	return m
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPublish records a successfully acknowledged batch.
func (m *Metrics) RecordPublish(messages, bytes int, d time.Duration) {
	if m == nil {
		return
	}
	m.messagesPublished.Add(float64(messages))
	m.batchesPublished.Inc()
	m.bytesPublished.Add(float64(bytes))
	m.publishDuration.Observe(d.Seconds())
	m.batchMessages.Observe(float64(messages))
}

// RecordRetry records one retried send attempt.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.sendRetries.Inc()
}

// RecordDrop records messages lost with their batch.
func (m *Metrics) RecordDrop(messages int) {
	if m == nil {
		return
	}
	m.messagesDropped.Add(float64(messages))
}
