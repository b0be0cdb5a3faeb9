// Package metrics exposes Prometheus instruments for imports, outbound
// notifications and the HTTP surface.
//
// Instruments are registered on the default registry at init and served by
// promhttp at /metrics:
//
//	sleepimport_imports_total{outcome, stage}
//	sleepimport_import_duration_seconds
//	sleepimport_records_total{kind}          kind = parsed | new
//	sleepimport_last_success_timestamp_seconds
//	sleepimport_imports_in_flight
//	sleepimport_notifications_total{result}  result = sent | failed | skipped
//	sleepimport_circuit_breaker_state{name}  0=closed 1=half-open 2=open
//	sleepimport_http_requests_total{method, route, status}
//	sleepimport_http_request_duration_seconds{method, route}
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sleepimport"

var (
	// Import pipeline
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Import runs by outcome and, for failures, the stage that failed",
		},
		[]string{"outcome", "stage"},
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of an import run",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Sleep records seen by successful imports",
		},
		[]string{"kind"},
	)

	LastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful import",
		},
	)

	ImportsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "imports_in_flight",
			Help:      "Imports currently holding a limiter slot",
		},
	)

	// Notifications
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by result",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Outcome label values for ImportsTotal.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// RecordImport records one finished import run. stage is empty on success.
func RecordImport(duration time.Duration, parsed, inserted int, stage string, err error) {
	ImportDuration.Observe(duration.Seconds())
	if err != nil {
		ImportsTotal.WithLabelValues(OutcomeFailure, stage).Inc()
		return
	}
	ImportsTotal.WithLabelValues(OutcomeSuccess, "").Inc()
	RecordsTotal.WithLabelValues("parsed").Add(float64(parsed))
	RecordsTotal.WithLabelValues("new").Add(float64(inserted))
	LastSuccess.Set(float64(time.Now().Unix()))
}

// RecordNotification counts one notification attempt.
func RecordNotification(result string) {
	NotificationsTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackInFlight adjusts the in-flight import gauge.
func TrackInFlight(inc bool) {
	if inc {
		ImportsInFlight.Inc()
	} else {
		ImportsInFlight.Dec()
	}
}
