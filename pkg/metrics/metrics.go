package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Document metrics
	DocumentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "milli_documents_total",
			Help: "Total number of live documents in the index",
		},
	)

	DocumentsIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "milli_documents_indexed_total",
			Help: "Total number of documents upserted or replaced",
		},
	)

	DocumentsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "milli_documents_deleted_total",
			Help: "Total number of documents deleted",
		},
	)

	// Index storage metrics
	IndexSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "milli_index_size_bytes",
			Help: "Size of the index's on-disk data file in bytes",
		},
	)

	// Indexing pipeline metrics
	IndexingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "milli_indexing_duration_seconds",
			Help:    "Time taken to run one pipeline.Run batch in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexingBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milli_indexing_batches_total",
			Help: "Total number of indexing batches run, by outcome",
		},
		[]string{"outcome"},
	)

	// Search metrics
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milli_search_requests_total",
			Help: "Total number of Search calls, by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "milli_search_duration_seconds",
			Help:    "Time taken to resolve a Search call in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SearchDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "milli_search_degraded_total",
			Help: "Total number of searches that exceeded their time budget",
		},
	)

	SearchResultsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "milli_search_results_returned",
			Help:    "Number of hits returned per search",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 500},
		},
	)

	// Automaton cache metrics
	AutomatonCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "milli_automaton_cache_hits_total",
			Help: "Total number of Levenshtein automaton cache hits",
		},
	)

	AutomatonCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "milli_automaton_cache_misses_total",
			Help: "Total number of Levenshtein automaton cache misses",
		},
	)

	// Consistency metrics
	ConsistencyCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "milli_consistency_check_duration_seconds",
			Help:    "Time taken for one consistency.Check pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ConsistencyCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "milli_consistency_cycles_total",
			Help: "Total number of consistency check cycles completed",
		},
	)

	ConsistencyViolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "milli_consistency_violations_total",
			Help: "Total number of consistency check cycles that found a violation",
		},
	)

	OrphanDirsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "milli_orphan_dirs_swept_total",
			Help: "Total number of orphaned pipeline spill directories removed",
		},
	)

	// Settings metrics
	SettingsUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milli_settings_updates_total",
			Help: "Total number of settings updates, by whether they triggered a full reindex",
		},
		[]string{"full_reindex"},
	)
)

func init() {
	prometheus.MustRegister(DocumentsTotal)
	prometheus.MustRegister(DocumentsIndexedTotal)
	prometheus.MustRegister(DocumentsDeletedTotal)
	prometheus.MustRegister(IndexSizeBytes)

	prometheus.MustRegister(IndexingDuration)
	prometheus.MustRegister(IndexingBatchesTotal)

	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchDegradedTotal)
	prometheus.MustRegister(SearchResultsReturned)

	prometheus.MustRegister(AutomatonCacheHitsTotal)
	prometheus.MustRegister(AutomatonCacheMissesTotal)

	prometheus.MustRegister(ConsistencyCheckDuration)
	prometheus.MustRegister(ConsistencyCyclesTotal)
	prometheus.MustRegister(ConsistencyViolationsTotal)
	prometheus.MustRegister(OrphanDirsSweptTotal)

	prometheus.MustRegister(SettingsUpdatesTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
