package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Period closure metrics
	periodClosuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_period_closures_total",
		Help: "Total period closure attempts",
	}, []string{
		"result", // closed, recomputed, failed, aggregation_failed
	})

	closureDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "billing_period_closure_duration_seconds",
		Help: "Time to close a billing period end-to-end",
		// Closures scan the whole trip window; allow for long tails
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{
		"result",
	})

	commissionAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_commission_amount_total",
		Help: "Total commission amount computed across successful closures",
	})

	// Reopen metrics
	periodReopensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_period_reopens_total",
		Help: "Total period reopens",
	})

	// Staleness metrics
	stalePeriods = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "billing_stale_periods",
		Help: "Closed periods with trips edited after closure, per last sweep",
	})
)

// RecordPeriodClosure records a closure or recompute attempt.
// commissionAmount only counts toward revenue tracking on success.
func RecordPeriodClosure(result string, commissionAmount float64, duration float64) {
	periodClosuresTotal.WithLabelValues(result).Inc()
	closureDuration.WithLabelValues(result).Observe(duration)

	if result == "closed" || result == "recomputed" {
		commissionAmountTotal.Add(commissionAmount)
	}
}

// RecordPeriodReopen records a successful reopen
func RecordPeriodReopen() {
	periodReopensTotal.Inc()
}

// UpdateStalePeriods updates the stale period gauge after a sweep
func UpdateStalePeriods(count int) {
	stalePeriods.Set(float64(count))
}
