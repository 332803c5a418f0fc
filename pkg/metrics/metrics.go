package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job lifecycle metrics
	JobsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shredder_jobs_by_status",
			Help: "Number of jobs currently at each master status",
		},
		[]string{"status"},
	)

	JobsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredder_jobs_completed_total",
			Help: "Total number of jobs the completion leader advanced to stage3shredding",
		},
	)

	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredder_jobs_failed_total",
			Help: "Total number of job/agent invocations that failed, by agent mode",
		},
		[]string{"mode"},
	)

	// Client ingest metrics
	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shredder_ingest_duration_seconds",
			Help:    "Time taken for the client ingest pipeline to complete",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Lease metrics
	LeaseAcquireAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredder_lease_acquire_attempts_total",
			Help: "Total number of lease acquisition attempts by stage and outcome",
		},
		[]string{"stage", "outcome"}, // outcome: acquired, contended, error
	)

	// Block-discovery leader pass metrics
	DiscoveryPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shredder_discovery_pass_duration_seconds",
			Help:    "Time taken for a block-discovery leader pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	BlocksDiscoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredder_blocks_discovered_total",
			Help: "Total number of block-replica entries written to worklists",
		},
	)

	// Preserve pass metrics
	BlocksLinkedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredder_blocks_linked_total",
			Help: "Total number of blocks successfully hardlinked into a shred directory",
		},
	)

	BlockSearchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredder_block_search_failures_total",
			Help: "Total number of block searches that found zero or multiple matches",
		},
		[]string{"reason"}, // reason: not_found, multiple_matches
	)

	// Completion leader pass metrics
	StalledWorkersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredder_stalled_workers_total",
			Help: "Total number of times a worker was flagged stalled by the completion leader",
		},
		[]string{"worker_id"},
	)

	// Shredder pass metrics
	BlocksShreddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredder_blocks_shredded_total",
			Help: "Total number of blocks irrecoverably shredded",
		},
	)

	ShredDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shredder_shred_duration_seconds",
			Help:    "Time taken to shred a single block",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(JobsByStatus)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(LeaseAcquireAttemptsTotal)
	prometheus.MustRegister(DiscoveryPassDuration)
	prometheus.MustRegister(BlocksDiscoveredTotal)
	prometheus.MustRegister(BlocksLinkedTotal)
	prometheus.MustRegister(BlockSearchFailuresTotal)
	prometheus.MustRegister(StalledWorkersTotal)
	prometheus.MustRegister(BlocksShreddedTotal)
	prometheus.MustRegister(ShredDuration)
}

// Handler returns the Prometheus HTTP handler for the metrics endpoint.
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
