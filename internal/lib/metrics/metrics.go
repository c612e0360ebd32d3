// Package metrics регистрирует метрики Prometheus планировщика.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "planner"

var (
	remarksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remarks",
			Name:      "submitted_total",
			Help:      "Remark submissions by result code",
		},
		[]string{"result"},
	)

	coinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coins",
			Name:      "moved_total",
			Help:      "Coins granted or charged by kind",
		},
		[]string{"kind"},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Sweep runs by sweep name and result",
		},
		[]string{"sweep", "result"},
	)

	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Sweep duration in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		},
		[]string{"sweep"},
	)

	plansPaused = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plans",
			Name:      "paused_total",
			Help:      "Plans paused by the lifecycle monitor",
		},
	)

	subscriptionsDowngraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "downgraded_total",
			Help:      "Users downgraded to the base tier",
		},
	)

	remindersSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Task reminders dispatched",
		},
	)
)

// Coin kinds.
const (
	CoinsTask         = "task"
	CoinsBonus        = "bonus"
	CoinsPastFee      = "past_remark_fee"
	CoinsRestartFee   = "restart_fee"
	CoinsNewPlan      = "new_plan"
	CoinsSubscription = "subscription_conversion"
)

// RecordRemark учитывает отправку отметки с итоговым кодом ("ok" или код ошибки).
func RecordRemark(result string) {
	remarksTotal.WithLabelValues(result).Inc()
}

// RecordCoins учитывает движение монет.
func RecordCoins(kind string, amount int) {
	if amount <= 0 {
		return
	}
	coinsTotal.WithLabelValues(kind).Add(float64(amount))
}

// RecordSweep учитывает запуск фоновой задачи.
func RecordSweep(sweep, result string, started time.Time) {
	sweepRuns.WithLabelValues(sweep, result).Inc()
	sweepDuration.WithLabelValues(sweep).Observe(time.Since(started).Seconds())
}

// RecordPlansPaused учитывает приостановленные планы.
func RecordPlansPaused(n int) {
	plansPaused.Add(float64(n))
}

// RecordDowngraded учитывает пользователей, возвращённых на базовый тариф.
func RecordDowngraded(n int64) {
	subscriptionsDowngraded.Add(float64(n))
}

// RecordReminders учитывает отправленные напоминания.
func RecordReminders(n int) {
	remindersSent.Add(float64(n))
}
