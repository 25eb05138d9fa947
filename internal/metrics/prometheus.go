// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the reverse vending machine backend.
var (
	// Counters.
	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rvm_deposits_total",
			Help: "Total number of container deposits recorded",
		},
		[]string{"object_type"},
	)

	PointsAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rvm_points_awarded_total",
			Help: "Total points credited to accounts for deposits",
		},
		[]string{"object_type"},
	)

	PointsSpentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rvm_points_spent_total",
			Help: "Total points debited from accounts for redemptions",
		},
	)

	PointsRefundedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rvm_points_refunded_total",
			Help: "Total points refunded for cancelled redemptions",
		},
	)

	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rvm_redemptions_total",
			Help: "Total number of reward redemptions",
		},
		[]string{"status"},
	)

	RedemptionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rvm_redemptions_rejected_total",
			Help: "Total number of redemption attempts rejected",
		},
		[]string{"reason"},
	)

	AccountsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rvm_accounts_created_total",
			Help: "Total number of accounts registered",
		},
	)

	// Gauges.
	RewardStock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rvm_reward_stock",
			Help: "Current stock level per reward",
		},
		[]string{"reward"},
	)

	ActiveAccounts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rvm_active_accounts",
			Help: "Current number of active accounts",
		},
	)

	CO2AvoidedKGTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rvm_co2_avoided_kg_total",
			Help: "Cumulative estimated CO2 avoided across all deposits, in kilograms",
		},
	)

	// Histograms.
	DepositWeightKG = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rvm_deposit_weight_kg",
			Help:    "Estimated weight per deposit in kilograms",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 8), // 5g to ~640g
		},
		[]string{"object_type"},
	)

	RedemptionCost = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rvm_redemption_cost",
			Help:    "Points spent per redemption",
			Buckets: prometheus.LinearBuckets(50, 50, 10), // 50 to 500 points
		},
		[]string{"category"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rvm_scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rvm_scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rvm_scheduler_job_duration_seconds",
			Help:    "Time taken to execute the nightly maintenance job",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~128s
		},
	)

	// Badge gamification metrics.
	BadgesAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rvm_badges_awarded_total",
			Help: "Total number of badges awarded",
		},
		[]string{"badge_name"},
	)

	ActiveBadgeHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rvm_active_badge_holders",
			Help: "Current number of accounts holding each badge",
		},
		[]string{"badge_name"},
	)
)

// RecordDeposit records a container deposit and the points it awarded.
func RecordDeposit(objectType string, points int, weightKG float64) {
	DepositsTotal.WithLabelValues(objectType).Inc()
	PointsAwardedTotal.WithLabelValues(objectType).Add(float64(points))
	DepositWeightKG.WithLabelValues(objectType).Observe(weightKG)
}

// RecordRedemption records a completed redemption.
func RecordRedemption(status, category string, pointsSpent int) {
	RedemptionsTotal.WithLabelValues(status).Inc()
	PointsSpentTotal.Add(float64(pointsSpent))
	RedemptionCost.WithLabelValues(category).Observe(float64(pointsSpent))
}

// RecordRedemptionRejected records a rejected redemption attempt.
func RecordRedemptionRejected(reason string) {
	RedemptionsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordRedemptionCancelled records a cancelled redemption and its refund.
func RecordRedemptionCancelled(pointsRefunded int) {
	RedemptionsTotal.WithLabelValues("cancelled").Inc()
	PointsRefundedTotal.Add(float64(pointsRefunded))
}

// RecordAccountCreated records a new account registration.
func RecordAccountCreated() {
	AccountsCreatedTotal.Inc()
}

// RecordBadgeAwarded records a badge being awarded.
func RecordBadgeAwarded(badgeName string) {
	BadgesAwardedTotal.WithLabelValues(badgeName).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(status string) {
	SchedulerJobsRunTotal.WithLabelValues(status).Inc()
}

// SetSchedulerLastRun updates the last run timestamp to now.
func SetSchedulerLastRun() {
	SchedulerLastRunTimestamp.SetToCurrentTime()
}

// ObserveSchedulerJobDuration records how long a scheduler job took.
func ObserveSchedulerJobDuration(seconds float64) {
	SchedulerJobDurationSeconds.Observe(seconds)
}

// SetActiveBadgeHolders sets the current number of holders for a badge.
func SetActiveBadgeHolders(badgeName string, count int) {
	ActiveBadgeHolders.WithLabelValues(badgeName).Set(float64(count))
}

// SetRewardStock sets the current stock level for a reward.
func SetRewardStock(reward string, stock int) {
	RewardStock.WithLabelValues(reward).Set(float64(stock))
}

// SetActiveAccounts sets the current number of active accounts.
func SetActiveAccounts(count int64) {
	ActiveAccounts.Set(float64(count))
}

// SetCO2AvoidedKG sets the cumulative estimated CO2 avoided.
func SetCO2AvoidedKG(kg float64) {
	CO2AvoidedKGTotal.Set(kg)
}
