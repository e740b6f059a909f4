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
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var (
	// DealerOperations counts reconciliation outcomes, labelled with the
	// operation (approve, reject, invite, submit, identity_event) and the
	// resulting error code, or "ok".
	DealerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealer_operations_total",
			Help: "Dealer onboarding operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// AccountReconciliations counts which branch approve took for the account row.
	AccountReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealer_account_reconciliations_total",
			Help: "Account rows reconciled during approval by branch (insert, update, race_recovered)",
		},
		[]string{"branch"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notification channel deliveries by kind, channel and status",
		},
		[]string{"kind", "channel", "status"},
	)

	RoleCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_cache_lookups_total",
			Help: "Caller role cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
