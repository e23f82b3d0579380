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
	// Market data metrics
	FetchesTotal   *prometheus.CounterVec
	FetchLatency   *prometheus.HistogramVec
	BarsFetched    prometheus.Counter
	CacheHitsTotal *prometheus.CounterVec
	CacheMissTotal *prometheus.CounterVec

	// Analysis metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	AssetsAnalyzed   prometheus.Counter
	AssetsSkipped    *prometheus.CounterVec
	EstimationsTotal *prometheus.CounterVec
	ReportsGenerated prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	DBConnections   *prometheus.GaugeVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	UptimeSeconds     prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "event_study_lab"
	}

	return &Metrics{
		// Market data metrics
		FetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetches_total",
			Help:      "Total number of upstream price history fetches by status",
		}, []string{"status"}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetch_latency_seconds",
			Help:      "Upstream fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		BarsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "bars_fetched_total",
			Help:      "Total number of daily bars fetched from upstream",
		}),
		CacheHitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "cache_hits_total",
			Help:      "Total number of bar cache hits by ticker",
		}, []string{"ticker"}),
		CacheMissTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "cache_misses_total",
			Help:      "Total number of bar cache misses by ticker",
		}, []string{"ticker"}),

		// Analysis metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of event study runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "Event study run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		AssetsAnalyzed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "assets_analyzed_total",
			Help:      "Total number of assets successfully analyzed",
		}),
		AssetsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "assets_skipped_total",
			Help:      "Total number of assets skipped by reason",
		}, []string{"reason"}),
		EstimationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "estimations_total",
			Help:      "Total number of market model estimations by status",
		}, []string{"status"}),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Database metrics
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
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		DBConnections: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections",
			Help:      "Number of database connections by state",
		}, []string{"database", "state"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful event study run",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetch records an upstream fetch outcome.
func RecordFetch(status string, seconds float64, bars int) {
	DefaultMetrics.FetchesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.FetchLatency.WithLabelValues("yahoo").Observe(seconds)
	if bars > 0 {
		DefaultMetrics.BarsFetched.Add(float64(bars))
	}
}

// RecordCacheHit increments the bar cache hit counter.
func RecordCacheHit(ticker string) {
	DefaultMetrics.CacheHitsTotal.WithLabelValues(ticker).Inc()
}

// RecordCacheMiss increments the bar cache miss counter.
func RecordCacheMiss(ticker string) {
	DefaultMetrics.CacheMissTotal.WithLabelValues(ticker).Inc()
}

// RecordRun records a completed event study run.
func RecordRun(status string, seconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(seconds)
}

// RecordAssetAnalyzed increments the analyzed assets counter.
func RecordAssetAnalyzed() {
	DefaultMetrics.AssetsAnalyzed.Inc()
}

// RecordAssetSkipped records a skipped asset by reason.
func RecordAssetSkipped(reason string) {
	DefaultMetrics.AssetsSkipped.WithLabelValues(reason).Inc()
}

// RecordEstimation records a market model estimation outcome.
func RecordEstimation(status string) {
	DefaultMetrics.EstimationsTotal.WithLabelValues(status).Inc()
}

// RecordReportGenerated increments the reports generated counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
