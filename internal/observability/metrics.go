// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scheduler metrics
	RequestsTotal  *prometheus.CounterVec
	RequestRetries *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	PoolQueueDepth *prometheus.GaugeVec

	// Audit metrics
	WalletsClassified *prometheus.CounterVec
	HoldersEnumerated prometheus.Counter
	AuditRunsTotal    *prometheus.CounterVec
	AuditDuration     prometheus.Histogram
	FundingTraces     *prometheus.CounterVec

	// Bundle metrics
	BundlesDetected   prometheus.Counter
	TradeEventsStored prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "holder_audit"
	}

	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "requests_total",
			Help:      "Total outbound requests by pool, context and outcome",
		}, []string{"pool", "main_context", "sub_context", "outcome"}),
		RequestRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "request_retries_total",
			Help:      "Total request retry attempts by pool",
		}, []string{"pool"}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "request_latency_seconds",
			Help:      "Outbound request latency in seconds, queue wait included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pool"}),
		PoolQueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "pool_queue_depth",
			Help:      "Number of callers waiting on a pool's token bucket",
		}, []string{"pool"}),

		WalletsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "wallets_classified_total",
			Help:      "Total wallets classified by terminal category",
		}, []string{"category"}),
		HoldersEnumerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "holders_enumerated_total",
			Help:      "Total holder records produced by the enumerator",
		}),
		AuditRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "runs_total",
			Help:      "Total audit runs by status",
		}, []string{"status"}),
		AuditDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "run_duration_seconds",
			Help:      "Audit run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		FundingTraces: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "funding_traces_total",
			Help:      "Total funding traces by result",
		}, []string{"result"}),

		BundlesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bundle",
			Name:      "bundles_detected_total",
			Help:      "Total bundles detected by the aggregator",
		}),
		TradeEventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bundle",
			Name:      "trade_events_stored_total",
			Help:      "Total trade events written to the trade store",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRequest records one scheduler request outcome. The context labels
// are observability-only; they never influence scheduling.
func RecordRequest(pool, mainContext, subContext, outcome string, seconds float64) {
	DefaultMetrics.RequestsTotal.WithLabelValues(pool, mainContext, subContext, outcome).Inc()
	DefaultMetrics.RequestLatency.WithLabelValues(pool).Observe(seconds)
}

// RecordRetry records one retry attempt on a pool.
func RecordRetry(pool string) {
	DefaultMetrics.RequestRetries.WithLabelValues(pool).Inc()
}

// SetQueueDepth updates a pool's waiter gauge.
func SetQueueDepth(pool string, depth int) {
	DefaultMetrics.PoolQueueDepth.WithLabelValues(pool).Set(float64(depth))
}

// RecordClassification increments the per-category wallet counter.
func RecordClassification(category string) {
	DefaultMetrics.WalletsClassified.WithLabelValues(category).Inc()
}

// RecordHolders adds to the enumerated holder counter.
func RecordHolders(n int) {
	DefaultMetrics.HoldersEnumerated.Add(float64(n))
}

// RecordAuditRun records a completed audit run.
func RecordAuditRun(status string, seconds float64) {
	DefaultMetrics.AuditRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.AuditDuration.Observe(seconds)
}

// RecordFundingTrace records a funding trace result (hit, miss, saturated).
func RecordFundingTrace(result string) {
	DefaultMetrics.FundingTraces.WithLabelValues(result).Inc()
}

// RecordBundles adds to the detected bundle counter.
func RecordBundles(n int) {
	DefaultMetrics.BundlesDetected.Add(float64(n))
}

// RecordTradeEvents adds to the stored trade event counter.
func RecordTradeEvents(n int) {
	DefaultMetrics.TradeEventsStored.Add(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
