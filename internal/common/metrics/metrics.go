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

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_request_transitions_total",
			Help: "Accepted service request status transitions",
		},
		[]string{"from", "to"},
	)

	RejectedMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_request_rejected_total",
			Help: "Service request mutations rejected by validation, by operation and error code",
		},
		[]string{"operation", "error_code"},
	)

	Assignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_request_assignments_total",
			Help: "Worker assignment changes by audit action",
		},
		[]string{"action"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications handed to a delivery channel",
		},
		[]string{"channel"},
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Notifications dropped by recipient preferences",
		},
		[]string{"category"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Notification deliveries that returned an error",
		},
		[]string{"channel"},
	)

	TextGenFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_textgen_fallbacks_total",
			Help: "Times the template text was used because generation failed or timed out",
		},
		[]string{"reason"},
	)

	EventSinkQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lifecycle_event_sink_queue_depth",
			Help: "Lifecycle events waiting for an asynchronous sink",
		},
		[]string{"sink"},
	)

	EventSinkDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_event_sink_dropped_total",
			Help: "Lifecycle events dropped before reaching an asynchronous sink",
		},
		[]string{"sink", "reason"},
	)

	EventSinkPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_event_sink_panics_total",
			Help: "Recovered panics in lifecycle event sinks",
		},
		[]string{"sink"},
	)
)
