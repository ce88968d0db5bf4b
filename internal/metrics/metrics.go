// Package metrics holds the Prometheus collectors for the HTTP surface, the
// delivery backend and batch dispatch. Collectors register with the default
// registry, which the server exposes on /metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/wabatch/internal/core"
)

const namespace = "wabatch"

// Batch outcomes.
const (
	BatchSuccess              = "success"
	BatchSuccessLogoutWarning = "success_logout_warning"
	BatchFailed               = "failed"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	DeliveryCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_calls_total",
			Help:      "Calls made to the WhatsApp automation backend",
		},
		[]string{"operation", "outcome"},
	)

	DeliveryCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_call_duration_seconds",
			Help:      "Duration of calls to the WhatsApp automation backend",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	DeliveryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_errors_total",
			Help:      "Failed backend calls by error code",
		},
		[]string{"operation", "code"},
	)

	Batches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Finished batch sends by outcome",
		},
		[]string{"outcome"},
	)

	BatchRowsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_rows_sent_total",
			Help:      "Contact rows delivered as part of a batch",
		},
	)

	BatchesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_active",
			Help:      "Batches currently reading or sending",
		},
	)
)

// ObserveDelivery records one backend call that started at start.
func ObserveDelivery(operation string, start time.Time, err error) {
	DeliveryCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		DeliveryCalls.WithLabelValues(operation, "ok").Inc()
		return
	}
	DeliveryCalls.WithLabelValues(operation, "error").Inc()

	code := core.CodeOf(err)
	if code == "" {
		code = "UNKNOWN"
	}
	DeliveryErrors.WithLabelValues(operation, code).Inc()
}

// RecordBatch records a finished batch. result is nil when err is set. It
// matches core.BatchObserver.
func RecordBatch(result *core.BatchResult, err error) {
	if err != nil {
		Batches.WithLabelValues(BatchFailed).Inc()
		var batchErr *core.BatchError
		if errors.As(err, &batchErr) {
			BatchRowsSent.Add(float64(batchErr.RowsProcessed))
		}
		return
	}
	BatchRowsSent.Add(float64(result.RowsProcessed))
	if result.LogoutWarning != "" {
		Batches.WithLabelValues(BatchSuccessLogoutWarning).Inc()
		return
	}
	Batches.WithLabelValues(BatchSuccess).Inc()
}

// ObserveBatchState tracks in-flight batches. It matches core.StateObserver.
func ObserveBatchState(_ string, _, to core.BatchState) {
	switch to {
	case core.StateReading:
		BatchesActive.Inc()
	case core.StateDone, core.StateFailed:
		BatchesActive.Dec()
	}
}

// ObserveHTTP records one finished request. route is the chi route pattern;
// requests that matched no route are grouped under "unmatched".
func ObserveHTTP(method, route string, status int, start time.Time) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}
