// Package metrics exposes the worker's ambient Prometheus instrumentation.
// Adapted from the teacher's internal/metrics/metrics.go: same
// promauto-vector-plus-helper shape, retargeted from securities API call
// counters to batch-processing counters (task outcomes, batch throughput,
// lock contention, downstream submissions, pool connections).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksProcessed counts terminal task outcomes by status (completed, failed).
	TasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transformat_tasks_processed_total",
			Help: "Total tasks reaching a terminal status",
		},
		[]string{"status"},
	)

	// TaskDuration tracks wall-clock time from claim to terminal status.
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transformat_task_duration_seconds",
			Help:    "Task processing duration from claim to completion",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"status"},
	)

	// RecordsWritten tracks rows written per task's columnar output.
	RecordsWritten = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transformat_records_written",
			Help:    "Records written to columnar output per task",
			Buckets: []float64{0, 1, 100, 1000, 10000, 30000, 100000},
		},
		[]string{"file_name"},
	)

	// LockContention counts advisory-lock acquisition attempts by outcome.
	LockContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transformat_lock_attempts_total",
			Help: "Advisory lock acquisition attempts by outcome",
		},
		[]string{"outcome"}, // acquired, contended, error
	)

	// DownstreamSubmissions counts best-effort masking submissions by outcome.
	DownstreamSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transformat_downstream_submissions_total",
			Help: "Downstream masking submissions by outcome",
		},
		[]string{"outcome"}, // ok, error
	)

	// BatchDuration tracks one orchestrator drain-the-queue pass.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transformat_batch_duration_seconds",
			Help:    "Duration of one orchestrator batch pass",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600},
		},
	)

	// PoolConnectionsGauge reports pgxpool connection counts by state
	// (acquired, idle, total), sampled by the orchestrator before each batch.
	PoolConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transformat_db_pool_connections",
			Help: "Database pool connections by state",
		},
		[]string{"state"},
	)
)

// RecordTaskOutcome records a terminal task outcome and its duration.
func RecordTaskOutcome(status string, durationSeconds float64) {
	TasksProcessed.WithLabelValues(status).Inc()
	TaskDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordRecordsWritten records the row count written for one file.
func RecordRecordsWritten(fileName string, count int64) {
	RecordsWritten.WithLabelValues(fileName).Observe(float64(count))
}

// RecordLockAttempt records one advisory-lock acquisition outcome.
func RecordLockAttempt(outcome string) {
	LockContention.WithLabelValues(outcome).Inc()
}

// RecordDownstreamSubmission records one masking-submission outcome.
func RecordDownstreamSubmission(outcome string) {
	DownstreamSubmissions.WithLabelValues(outcome).Inc()
}

// RecordPoolStat sets the pool connection gauge for acquired, idle and
// total connections.
func RecordPoolStat(acquired, idle, total int32) {
	PoolConnectionsGauge.WithLabelValues("acquired").Set(float64(acquired))
	PoolConnectionsGauge.WithLabelValues("idle").Set(float64(idle))
	PoolConnectionsGauge.WithLabelValues("total").Set(float64(total))
}
