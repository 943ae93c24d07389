package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	staleConflictsTotal *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	notificationStreams prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hifz_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hifz_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hifz_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hifz_workflow_transitions_total",
			Help: "Accepted state transitions by entity and action.",
		}, []string{"entity", "action"})

		staleConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hifz_workflow_stale_conflicts_total",
			Help: "Conditional writes that lost a race with a concurrent transition.",
		}, []string{"entity"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hifz_notifications_published_total",
			Help: "Notifications delivered to local subscribers by type.",
		}, []string{"type"})

		notificationStreams = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hifz_notification_streams_active",
			Help: "Currently connected SSE and websocket notification streams.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			transitionsTotal,
			staleConflictsTotal,
			notificationsTotal,
			notificationStreams,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// TransitionsTotal counts accepted transitions.
func TransitionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionsTotal
}

// StaleConflictsTotal counts compare-and-swap losses.
func StaleConflictsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return staleConflictsTotal
}

// NotificationsPublishedTotal counts delivered notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// NotificationStreamsActive tracks open notification streams.
func NotificationStreamsActive() prometheus.Gauge {
	RegisterMetrics()
	return notificationStreams
}
