package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "site_dashboard_"

	resultSuccess = "success"
	resultError   = "error"

	lookupFound   = "found"
	lookupAbsent  = "absent"
	lookupFailed  = "failed"
	lookupInvalid = "invalid_module_id"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	aggregationLookups *prometheus.CounterVec
	aggregationLatency prometheus.Histogram

	reconcileTotal   *prometheus.CounterVec
	reconcileDevices *prometheus.CounterVec

	ingestEvents *prometheus.CounterVec
	ingestErrors *prometheus.CounterVec
	ingestBatch  prometheus.Histogram

	dashboardClients prometheus.Gauge
	exportTotal      *prometheus.CounterVec
)

// Init registers the collectors with the default registry
func Init() {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		)

		aggregationLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "aggregation_lookups_total",
				Help: "Latest-event lookups by outcome",
			},
			[]string{"result"},
		)
		aggregationLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "aggregation_latency_seconds",
				Help:    "Latency of a full site aggregation in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "site_upserts_total",
				Help: "Site upserts by result",
			},
			[]string{"result"},
		)
		reconcileDevices = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciled_devices_total",
				Help: "Devices added or updated by site upserts",
			},
			[]string{"change"},
		)

		ingestEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingested_events_total",
				Help: "Device events written by source",
			},
			[]string{"source"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Ingestion failures by reason",
			},
			[]string{"reason"},
		)
		ingestBatch = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_batch_size",
				Help:    "Events per flushed batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		)

		dashboardClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "dashboard_stream_clients",
				Help: "Open dashboard websocket streams",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "board_exports_total",
				Help: "Board exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			aggregationLookups,
			aggregationLatency,
			reconcileTotal,
			reconcileDevices,
			ingestEvents,
			ingestErrors,
			ingestBatch,
			dashboardClients,
			exportTotal,
		)
	})
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one served request
func ObserveHTTP(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
	}
}

// IncLookup counts one latest-event lookup outcome
func IncLookup(result string) {
	if result == "" {
		result = lookupFound
	}
	if aggregationLookups != nil {
		aggregationLookups.WithLabelValues(result).Inc()
	}
}

// ObserveAggregation records a full aggregation duration
func ObserveAggregation(duration time.Duration) {
	if aggregationLatency != nil {
		aggregationLatency.Observe(duration.Seconds())
	}
}

// ObserveReconcile records a site upsert
func ObserveReconcile(result string, added, updated int) {
	if result == "" {
		result = resultSuccess
	}
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(result).Inc()
	}
	if reconcileDevices != nil {
		if added > 0 {
			reconcileDevices.WithLabelValues("added").Add(float64(added))
		}
		if updated > 0 {
			reconcileDevices.WithLabelValues("updated").Add(float64(updated))
		}
	}
}

// AddIngested counts written events
func AddIngested(source string, count int) {
	if count <= 0 {
		return
	}
	if ingestEvents != nil {
		ingestEvents.WithLabelValues(source).Add(float64(count))
	}
	if ingestBatch != nil && source == SourceMQTT {
		ingestBatch.Observe(float64(count))
	}
}

// IncIngestError counts a rejected or failed ingestion
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// StreamOpened tracks a new dashboard stream
func StreamOpened() {
	if dashboardClients != nil {
		dashboardClients.Inc()
	}
}

// StreamClosed tracks a closed dashboard stream
func StreamClosed() {
	if dashboardClients != nil {
		dashboardClients.Dec()
	}
}

// IncExport counts a board export
func IncExport(format, result string) {
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	LookupFound   = lookupFound
	LookupAbsent  = lookupAbsent
	LookupFailed  = lookupFailed
	LookupInvalid = lookupInvalid

	SourceMQTT = "mqtt"
	SourceHTTP = "http"
)
