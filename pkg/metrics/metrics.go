// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WSConnectionsActive tracks active websocket connections on the relay.
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_ws_connections_active",
			Help: "Number of active websocket connections",
		},
	)

	// BroadcastsTotal tracks frames fanned out by the relay hub.
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_broadcasts_total",
			Help: "Total frames broadcast to connected clients",
		},
		[]string{"source"},
	)

	// EventsReceivedTotal tracks normalized collaboration events by type.
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_events_received_total",
			Help: "Total collaboration events received after normalization",
		},
		[]string{"type"},
	)

	// EventsDedupedTotal tracks events dropped as duplicates.
	EventsDedupedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_events_deduped_total",
			Help: "Total events discarded as duplicate deliveries",
		},
	)

	// ReconnectsTotal tracks client reconnect attempts.
	ReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_reconnects_total",
			Help: "Total websocket reconnect attempts",
		},
	)

	// SendFailuresTotal tracks sends attempted while disconnected.
	SendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_send_failures_total",
			Help: "Total outbound sends that failed because the connection was down",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementWSConnections increments the active websocket connection count.
func IncrementWSConnections() {
	WSConnectionsActive.Inc()
}

// DecrementWSConnections decrements the active websocket connection count.
func DecrementWSConnections() {
	WSConnectionsActive.Dec()
}
