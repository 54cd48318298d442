// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Detection metrics
	EventsDetected   *prometheus.CounterVec
	DuplicatesFolded *prometheus.CounterVec
	DetectionLag     prometheus.Histogram

	// Filter metrics
	TokensEvaluated prometheus.Counter
	TokensAccepted  prometheus.Counter
	TokensRejected  prometheus.Counter

	// Execution metrics
	TransactionAttempts *prometheus.CounterVec
	TradesExecuted      *prometheus.CounterVec
	PriorityFeePaid     prometheus.Histogram

	// Position metrics
	PositionsOpened prometheus.Counter
	PositionsClosed *prometheus.CounterVec
	PositionsFailed prometheus.Counter
	OpenPositions   prometheus.Gauge

	// Transport metrics
	RPCCallLatency *prometheus.HistogramVec
	WSReconnects   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "curve_sniper"
	}

	return &Metrics{
		// Detection metrics
		EventsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "events_total",
			Help:      "Total token creation events seen by transport",
		}, []string{"transport"}),
		DuplicatesFolded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "duplicates_total",
			Help:      "Total events dropped as duplicates of a faster transport",
		}, []string{"transport"}),
		DetectionLag: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "lag_seconds",
			Help:      "Lag of duplicate sightings behind the winning transport",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		// Filter metrics
		TokensEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "tokens_evaluated_total",
			Help:      "Total tokens evaluated against the buy criteria",
		}),
		TokensAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "tokens_accepted_total",
			Help:      "Total tokens accepted for buying",
		}),
		TokensRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "tokens_rejected_total",
			Help:      "Total tokens rejected by the buy criteria",
		}),

		// Execution metrics
		TransactionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "attempts_total",
			Help:      "Total transaction attempts by operation and outcome",
		}, []string{"operation", "outcome"}),
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_total",
			Help:      "Total confirmed trades by side",
		}, []string{"side"}),
		PriorityFeePaid: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "priority_fee_microlamports",
			Help:      "Priority fee attached to confirmed transactions",
			Buckets:   []float64{50_000, 100_000, 250_000, 500_000, 1_000_000, 2_000_000},
		}),

		// Position metrics
		PositionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "opened_total",
			Help:      "Total positions opened",
		}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "closed_total",
			Help:      "Total positions closed by exit reason",
		}, []string{"reason"}),
		PositionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "failed_total",
			Help:      "Total positions stranded by failed exits",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "open",
			Help:      "Currently open positions",
		}),

		// Transport metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total WebSocket reconnections",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventDetected counts one creation event sighting.
func RecordEventDetected(transport string) {
	DefaultMetrics.EventsDetected.WithLabelValues(transport).Inc()
}

// RecordDuplicateFolded counts one deduplicated sighting and how far it
// trailed the winning transport.
func RecordDuplicateFolded(transport string, lagSeconds float64) {
	DefaultMetrics.DuplicatesFolded.WithLabelValues(transport).Inc()
	DefaultMetrics.DetectionLag.Observe(lagSeconds)
}

// RecordFilterResult counts one filter verdict.
func RecordFilterResult(accepted bool) {
	DefaultMetrics.TokensEvaluated.Inc()
	if accepted {
		DefaultMetrics.TokensAccepted.Inc()
	} else {
		DefaultMetrics.TokensRejected.Inc()
	}
}

// RecordAttempt counts one transaction attempt.
func RecordAttempt(operation, outcome string) {
	DefaultMetrics.TransactionAttempts.WithLabelValues(operation, outcome).Inc()
}

// RecordTrade counts one confirmed trade and its priority fee.
func RecordTrade(side string, priorityFee uint64) {
	DefaultMetrics.TradesExecuted.WithLabelValues(side).Inc()
	DefaultMetrics.PriorityFeePaid.Observe(float64(priorityFee))
}

// RecordPositionOpened counts one opened position.
func RecordPositionOpened() {
	DefaultMetrics.PositionsOpened.Inc()
	DefaultMetrics.OpenPositions.Inc()
}

// RecordPositionClosed counts one closed position.
func RecordPositionClosed(reason string) {
	DefaultMetrics.PositionsClosed.WithLabelValues(reason).Inc()
	DefaultMetrics.OpenPositions.Dec()
}

// RecordPositionFailed counts one failed position. wasOpen tells
// whether the position ever held tokens; only those positions were
// counted in the open gauge.
func RecordPositionFailed(wasOpen bool) {
	DefaultMetrics.PositionsFailed.Inc()
	if wasOpen {
		DefaultMetrics.OpenPositions.Dec()
	}
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWSReconnect counts one WebSocket reconnection.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}
