// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zera-sync/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Burn sync metrics
	BurnsAdded        prometheus.Counter
	BurnsSkipped      prometheus.Counter
	BurnSyncErrors    prometheus.Counter
	BurnSyncTruncated prometheus.Counter

	// Candle metrics
	CandlesFetched   *prometheus.CounterVec
	CandlesPersisted prometheus.Counter
	CandleFetchFails *prometheus.CounterVec

	// Account decode metrics
	AccountsScanned prometheus.Counter
	AccountsDecoded *prometheus.CounterVec

	// Upstream metrics
	RPCCallLatency    *prometheus.HistogramVec
	UpstreamRateWaits *prometheus.CounterVec
	UpstreamRetries   *prometheus.CounterVec

	// Writer metrics
	WriterQueueDepth prometheus.Gauge
	WriterTaskErrors prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSync     *prometheus.GaugeVec
	LastSuccessfulBackfill *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "zera_sync"
	}

	return &Metrics{
		// Burn sync metrics
		BurnsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "burns",
			Name:      "added_total",
			Help:      "Total number of burn events persisted",
		}),
		BurnsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "burns",
			Name:      "skipped_total",
			Help:      "Total number of transactions skipped (failed, duplicate, no burn)",
		}),
		BurnSyncErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "burns",
			Name:      "errors_total",
			Help:      "Total number of per-item burn sync errors",
		}),
		BurnSyncTruncated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "burns",
			Name:      "truncated_runs_total",
			Help:      "Total number of sync runs cut short by deadline",
		}),

		// Candle metrics
		CandlesFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "fetched_total",
			Help:      "Total number of candles fetched from upstream by timeframe",
		}, []string{"timeframe"}),
		CandlesPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "persisted_total",
			Help:      "Total number of complete candles written to storage",
		}),
		CandleFetchFails: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "fetch_failures_total",
			Help:      "Total number of upstream candle fetch failures by timeframe",
		}, []string{"timeframe"}),

		// Account decode metrics
		AccountsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "scanned_total",
			Help:      "Total number of program accounts scanned",
		}),
		AccountsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "decoded_total",
			Help:      "Total number of migration accounts decoded by status",
		}, []string{"status"}),

		// Upstream metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		UpstreamRateWaits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "rate_limit_waits_total",
			Help:      "Total number of calls delayed by the rate limiter",
		}, []string{"api"}),
		UpstreamRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Total number of transient-error retries by upstream",
		}, []string{"api"}),

		// Writer metrics
		WriterQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "queue_depth",
			Help:      "Current number of queued background write tasks",
		}),
		WriterTaskErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "task_errors_total",
			Help:      "Total number of failed background write tasks",
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

		// Health metrics
		LastSuccessfulSync: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sync_timestamp",
			Help:      "Unix timestamp of last successful burn sync by project",
		}, []string{"project"}),
		LastSuccessfulBackfill: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backfill_timestamp",
			Help:      "Unix timestamp of last successful backfill by project",
		}, []string{"project"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSyncReport folds a sync report into the burn counters.
func RecordSyncReport(report *domain.SyncReport) {
	if report == nil {
		return
	}
	DefaultMetrics.BurnsAdded.Add(float64(len(report.Added)))
	DefaultMetrics.BurnsSkipped.Add(float64(len(report.Skipped)))
	DefaultMetrics.BurnSyncErrors.Add(float64(len(report.Errors)))
	if report.Truncated {
		DefaultMetrics.BurnSyncTruncated.Inc()
	}
}

// RecordCandleFetch records an upstream candle fetch result.
func RecordCandleFetch(timeframe string, count int, err error) {
	if err != nil {
		DefaultMetrics.CandleFetchFails.WithLabelValues(timeframe).Inc()
		return
	}
	DefaultMetrics.CandlesFetched.WithLabelValues(timeframe).Add(float64(count))
}

// RecordAccountsDecoded records a batch of decoded migration accounts.
func RecordAccountsDecoded(records []domain.MigrationAccount) {
	DefaultMetrics.AccountsScanned.Add(float64(len(records)))
	for _, r := range records {
		DefaultMetrics.AccountsDecoded.WithLabelValues(string(r.Status)).Inc()
	}
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateWriterQueueDepth updates the background writer queue gauge.
func UpdateWriterQueueDepth(depth int) {
	DefaultMetrics.WriterQueueDepth.Set(float64(depth))
}

// MarkSyncSuccess records a completed sync for a project.
func MarkSyncSuccess(project string, unixTime int64) {
	DefaultMetrics.LastSuccessfulSync.WithLabelValues(project).Set(float64(unixTime))
}

// MarkBackfillSuccess records a completed backfill for a project.
func MarkBackfillSuccess(project string, unixTime int64) {
	DefaultMetrics.LastSuccessfulBackfill.WithLabelValues(project).Set(float64(unixTime))
}
