package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizhub_job_runs_total",
			Help: "Total background job runs",
		},
		[]string{"kind"},
	)

	jobErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizhub_job_errors_total",
			Help: "Total background job errors",
		},
		[]string{"kind"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizhub_job_duration_seconds",
			Help:    "Background job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	jobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizhub_jobs_scheduled_total",
			Help: "Total jobs enqueued by the scheduler",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, jobErrors, jobDuration, jobsEnqueued)
}
