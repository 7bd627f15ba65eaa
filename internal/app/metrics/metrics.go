package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vestearning",
			Subsystem: "maturity",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of maturity sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	sweepInvestments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vestearning",
			Subsystem: "maturity",
			Name:      "investments_swept_total",
			Help:      "Total investments processed by maturity sweeps.",
		},
		[]string{"result"},
	)

	sweepSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vestearning",
			Subsystem: "maturity",
			Name:      "sweep_skips_total",
			Help:      "Ticks skipped because a sweep was already in flight.",
		},
	)

	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vestearning",
			Subsystem: "confirmation",
			Name:      "operations_total",
			Help:      "Total confirmation workflow operations.",
		},
		[]string{"operation", "result"},
	)

	commissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vestearning",
			Subsystem: "referral",
			Name:      "commissions_total",
			Help:      "Total referral commissions credited.",
		},
		[]string{"level"},
	)

	commissionAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vestearning",
			Subsystem: "referral",
			Name:      "commission_amount_total",
			Help:      "Sum of referral commission amounts credited.",
		},
	)
)

func init() {
	Registry.MustRegister(
		sweepDuration,
		sweepInvestments,
		sweepSkips,
		confirmations,
		commissions,
		commissionAmount,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordSweep records one completed maturity sweep.
func RecordSweep(duration time.Duration, finalized, failed int) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	sweepDuration.Observe(duration.Seconds())
	sweepInvestments.WithLabelValues("finalized").Add(float64(finalized))
	sweepInvestments.WithLabelValues("failed").Add(float64(failed))
}

// RecordSweepSkip records a tick skipped by the re-entrancy guard.
func RecordSweepSkip() {
	sweepSkips.Inc()
}

// RecordConfirmation records a confirmation workflow operation outcome.
func RecordConfirmation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	confirmations.WithLabelValues(operation, result).Inc()
}

// RecordCommission records one credited referral commission.
func RecordCommission(level int, amount float64) {
	commissions.WithLabelValues(levelLabel(level)).Inc()
	commissionAmount.Add(amount)
}

func levelLabel(level int) string {
	switch level {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	default:
		return "other"
	}
}
