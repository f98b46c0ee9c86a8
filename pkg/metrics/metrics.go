// Package metrics provides Prometheus metrics for the Thistle service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsBuiltTotal tracks read operation builds by status
	OperationsBuiltTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "build",
			Name:      "operations_total",
			Help:      "Total number of read operations built by status",
		},
		[]string{"entity", "operation", "status"},
	)

	// EnumerationsTotal tracks enumeration registry outcomes
	EnumerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "build",
			Name:      "enumerations_total",
			Help:      "Total number of format enumerations by outcome",
		},
		[]string{"outcome"},
	)

	// ReadRequestsTotal tracks executed read requests by status
	ReadRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "read",
			Name:      "requests_total",
			Help:      "Total number of read requests by status",
		},
		[]string{"entity", "operation", "status"},
	)

	// ReadRequestDuration tracks read request duration in seconds
	ReadRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thistle",
			Subsystem: "read",
			Name:      "request_duration_seconds",
			Help:      "Duration of read requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"entity", "operation"},
	)

	// RequestRejectionsTotal tracks read requests rejected before reaching the data store
	RequestRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "read",
			Name:      "rejections_total",
			Help:      "Total number of read requests rejected during compilation by error code",
		},
		[]string{"code"},
	)

	// PageRowsReturned tracks the number of rows returned per page
	PageRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thistle",
			Subsystem: "read",
			Name:      "page_rows",
			Help:      "Number of rows returned per page",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"entity"},
	)

	// DataStoreCallDuration tracks data store calls in seconds
	DataStoreCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thistle",
			Subsystem: "datastore",
			Name:      "call_duration_seconds",
			Help:      "Duration of data store count and fetch calls in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"store", "call", "status"},
	)
)

// RecordOperationBuilt records a read operation build
func RecordOperationBuilt(entity, operation, status string) {
	OperationsBuiltTotal.WithLabelValues(entity, operation, status).Inc()
}

// RecordEnumeration records an enumeration registry outcome
func RecordEnumeration(outcome string) {
	EnumerationsTotal.WithLabelValues(outcome).Inc()
}

// RecordReadRequest records an executed read request
func RecordReadRequest(entity, operation, status string, durationSeconds float64) {
	ReadRequestsTotal.WithLabelValues(entity, operation, status).Inc()
	ReadRequestDuration.WithLabelValues(entity, operation).Observe(durationSeconds)
}

// RecordRejection records a request rejected with a capability error code
func RecordRejection(code string) {
	RequestRejectionsTotal.WithLabelValues(code).Inc()
}

// RecordPage records the size of a returned page
func RecordPage(entity string, rows int) {
	PageRowsReturned.WithLabelValues(entity).Observe(float64(rows))
}

// RecordDataStoreCall records a data store count or fetch call
func RecordDataStoreCall(store, call, status string, durationSeconds float64) {
	DataStoreCallDuration.WithLabelValues(store, call, status).Observe(durationSeconds)
}
