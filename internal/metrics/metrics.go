package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdengine_jobs_submitted_total",
		Help: "Total number of jobs accepted into the queue.",
	})

	JobsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdengine_jobs_rejected_total",
		Help: "Total number of submissions rejected by admission control.",
	})

	JobsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdengine_jobs_cancelled_total",
		Help: "Total number of jobs cancelled while still queued.",
	})

	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdengine_jobs_completed_total",
		Help: "Total number of jobs that completed successfully.",
	})

	JobsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdengine_jobs_failed_total",
			Help: "Total number of failed jobs by failure kind.",
		},
		[]string{"kind"},
	)

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sdengine_queue_depth",
		Help: "Number of jobs currently queued.",
	})

	JobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sdengine_jobs_running",
		Help: "Number of jobs currently being executed.",
	})

	JobDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sdengine_job_duration_seconds",
		Help:    "Wall time from pickup to terminal state.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)
