// Package metrics exposes Prometheus instrumentation for hookline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookline_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookline_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_dispatches_total",
			Help: "Total number of webhook dispatches",
		},
		[]string{"mode", "outcome"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookline_dispatch_duration_seconds",
			Help:    "Outgoing webhook call time in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	logEntriesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookline_log_entries_pruned_total",
			Help: "Execution log entries removed by retention pruning",
		},
	)

	incomingCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_incoming_calls_total",
			Help: "Total number of incoming webhook endpoint calls",
		},
		[]string{"outcome"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookline_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	dbConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookline_db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookline_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	realtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookline_realtime_connections",
			Help: "Number of active WebSocket connections",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func IncrementInFlight() {
	httpRequestsInFlight.Inc()
}

func DecrementInFlight() {
	httpRequestsInFlight.Dec()
}

// RecordDispatch counts one webhook dispatch. mode is "normal" or "test",
// outcome is "success", "failure", or "refused".
func RecordDispatch(mode, outcome string, duration time.Duration) {
	dispatchesTotal.WithLabelValues(mode, outcome).Inc()
	dispatchDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func RecordPrunedEntries(count int) {
	logEntriesPruned.Add(float64(count))
}

// RecordIncomingCall counts one inbound endpoint call. outcome is
// "accepted", "rejected", or "not_found".
func RecordIncomingCall(outcome string) {
	incomingCallsTotal.WithLabelValues(outcome).Inc()
}

func UpdateDBStats(open, inUse, idle int) {
	dbConnectionsOpen.Set(float64(open))
	dbConnectionsInUse.Set(float64(inUse))
	dbConnectionsIdle.Set(float64(idle))
}

func UpdateRealtimeStats(connections int) {
	realtimeConnections.Set(float64(connections))
}

// NormalizePath collapses {param} segments so path labels stay low
// cardinality.
func NormalizePath(path string) string {
	if len(path) > 100 {
		path = path[:100]
	}

	normalized := ""
	inParam := false
	for i := 0; i < len(path); i++ {
		if path[i] == '{' {
			inParam = true
			normalized += ":"
			continue
		}
		if path[i] == '}' {
			inParam = false
			continue
		}
		if !inParam {
			normalized += string(path[i])
		}
	}
	return normalized
}
