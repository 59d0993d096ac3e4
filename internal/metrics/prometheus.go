// Package metrics provides Prometheus exporters for ledger metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the feedback ledger.
var (
	// Counters.
	StorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_storage_errors_total",
			Help: "Storage errors by operation, including ones degraded to defaults",
		},
		[]string{"operation"},
	)

	FeedbackRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_feedback_recorded_total",
			Help: "Feedback contributions credited to member totals",
		},
	)

	ActivityIncrementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_activity_increments_total",
			Help: "Monthly activity counter increments by feedback kind",
		},
		[]string{"kind"},
	)

	RatingsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_ratings_submitted_total",
			Help: "Quality ratings submitted by result",
		},
		[]string{"result"},
	)

	PardonChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_pardon_changes_total",
			Help: "Pardons granted or revoked",
		},
		[]string{"change"},
	)

	PurchasesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_purchases_total",
			Help: "Total item purchases recorded",
		},
	)

	MembersDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_members_deleted_total",
			Help: "Total members deleted with their dependent records",
		},
	)

	CooldownsSweptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_cooldowns_swept_total",
			Help: "Cooldown rows removed by maintenance sweeps",
		},
		[]string{"action_kind"},
	)

	LeaderboardCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_leaderboard_cache_total",
			Help: "Leaderboard cache lookups by result",
		},
		[]string{"board", "result"},
	)

	// Gauges.
	LedgerMembers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_members",
			Help: "Number of member records",
		},
	)

	LedgerFeedback = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_feedback",
			Help: "All-time feedback contributions across members",
		},
	)

	LedgerCredits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_credits",
			Help: "Outstanding credits across members",
		},
	)

	LedgerLeases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_chapter_leases",
			Help: "Chapter leases across members",
		},
	)

	ActiveMembersThisMonth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_active_members_month",
			Help: "Members with activity in the current reporting month",
		},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"job"},
	)
)

// RecordStorageError records a storage failure for an operation.
func RecordStorageError(operation string) {
	StorageErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordFeedback records a feedback contribution credited to a member.
func RecordFeedback() {
	FeedbackRecordedTotal.Inc()
}

// RecordActivityIncrement records a monthly activity increment of the given kind.
func RecordActivityIncrement(kind string) {
	ActivityIncrementsTotal.WithLabelValues(kind).Inc()
}

// RecordRating records a rating submission result ("accepted", "duplicate", "invalid", "error").
func RecordRating(result string) {
	RatingsSubmittedTotal.WithLabelValues(result).Inc()
}

// RecordPardonChange records a pardon grant or revoke.
func RecordPardonChange(change string) {
	PardonChangesTotal.WithLabelValues(change).Inc()
}

// RecordPurchase records a purchase.
func RecordPurchase() {
	PurchasesTotal.Inc()
}

// RecordMemberDeleted records a member deletion.
func RecordMemberDeleted() {
	MembersDeletedTotal.Inc()
}

// RecordCooldownsSwept records rows removed by a sweep.
func RecordCooldownsSwept(actionKind string, count int64) {
	if actionKind == "" {
		actionKind = "all"
	}
	CooldownsSweptTotal.WithLabelValues(actionKind).Add(float64(count))
}

// RecordCacheLookup records a leaderboard cache hit or miss.
func RecordCacheLookup(board string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	LeaderboardCacheTotal.WithLabelValues(board, result).Inc()
}

// SetLedgerTotals publishes ledger-wide totals.
func SetLedgerTotals(members, feedback, credits, leases, activeThisMonth int64) {
	LedgerMembers.Set(float64(members))
	LedgerFeedback.Set(float64(feedback))
	LedgerCredits.Set(float64(credits))
	LedgerLeases.Set(float64(leases))
	ActiveMembersThisMonth.Set(float64(activeThisMonth))
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of a job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}
