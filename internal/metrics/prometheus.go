// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the progression service.
var (
	// XP and levels.
	XPAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "Total XP awarded, by source",
		},
		[]string{"source"},
	)

	XPAwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awards_total",
			Help: "Total number of XP award transactions, by source",
		},
		[]string{"source"},
	)

	LevelUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "level_ups_total",
			Help: "Total number of level-ups, by level reached",
		},
		[]string{"level"},
	)

	// Streaks.
	DailyClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daily_claims_total",
			Help: "Total daily login claims, by outcome",
		},
		[]string{"status"},
	)

	StreakLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streak_length_days",
			Help:    "Current streak length observed at claim time",
			Buckets: []float64{1, 2, 3, 5, 7, 14, 30, 60, 100, 365},
		},
	)

	// Donation ranks.
	RankOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rank_operations_total",
			Help: "Total donation rank operations, by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	ActiveRankHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_rank_holders",
			Help: "Current number of users holding each donation rank",
		},
		[]string{"rank"},
	)

	RanksExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranks_expired_total",
			Help: "Total donation ranks removed by the expiry sweep",
		},
	)

	// Achievements.
	AchievementsAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_awarded_total",
			Help: "Total number of achievements awarded",
		},
		[]string{"achievement", "category"},
	)

	// Scheduler.
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

	// Relay.
	RelayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Total events posted to the WebSocket relay, by outcome",
		},
		[]string{"event", "status"},
	)

	// HTTP.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	LeaderboardCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_cache_total",
			Help: "Leaderboard cache lookups, by result",
		},
		[]string{"result"},
	)
)

// RecordXPAwarded records one XP award.
func RecordXPAwarded(source string, amount int64) {
	XPAwardedTotal.WithLabelValues(source).Add(float64(amount))
	XPAwardsTotal.WithLabelValues(source).Inc()
}

// RecordLevelUp records a user reaching level.
func RecordLevelUp(level int) {
	LevelUpsTotal.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordDailyClaim records a daily claim outcome ("claimed" or "already_claimed").
func RecordDailyClaim(status string) {
	DailyClaimsTotal.WithLabelValues(status).Inc()
}

// ObserveStreakLength observes a streak length after a claim.
func ObserveStreakLength(days int) {
	StreakLength.Observe(float64(days))
}

// RecordRankOperation records a donation rank operation.
func RecordRankOperation(operation, status string) {
	RankOperationsTotal.WithLabelValues(operation, status).Inc()
}

// SetActiveRankHolders sets the number of holders for a rank.
func SetActiveRankHolders(rank string, count int64) {
	ActiveRankHolders.WithLabelValues(rank).Set(float64(count))
}

// RecordRanksExpired adds n to the expired rank counter.
func RecordRanksExpired(n int) {
	RanksExpiredTotal.Add(float64(n))
}

// RecordAchievementAwarded records an achievement award event.
func RecordAchievementAwarded(name, category string) {
	AchievementsAwardedTotal.WithLabelValues(name, category).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordRelayEvent records a relay post outcome.
func RecordRelayEvent(event, status string) {
	RelayEventsTotal.WithLabelValues(event, status).Inc()
}

// ObserveHTTPRequest records a finished HTTP request.
func ObserveHTTPRequest(method, route string, status int, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}

// RecordRateLimited records a rejected request.
func RecordRateLimited(route string) {
	RateLimitedTotal.WithLabelValues(route).Inc()
}

// RecordLeaderboardCache records a cache "hit", "miss" or "error".
func RecordLeaderboardCache(result string) {
	LeaderboardCacheTotal.WithLabelValues(result).Inc()
}
