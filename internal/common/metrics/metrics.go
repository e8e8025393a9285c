// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	StudentsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "students_scored_total",
			Help: "Students scored, by outcome",
		},
		[]string{"outcome"},
	)

	ScoringPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_pass_duration_seconds",
			Help:    "Duration of a full batch scoring pass",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	StudentsAtRisk = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "students_at_risk",
			Help: "Students per risk tier after the last scoring pass",
		},
		[]string{"tier"},
	)

	AlertDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_deliveries_total",
			Help: "Alert deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	SchedulesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_schedules_saved_total",
			Help: "Schedule save attempts by store and status",
		},
		[]string{"store", "status"},
	)
)

// Delivery statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)
