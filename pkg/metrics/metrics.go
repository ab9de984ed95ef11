package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeCommitted = "committed"
	OutcomeConflict  = "conflict"
	OutcomeFailure   = "infrastructure_failure"
	OutcomeRejected  = "rejected"
)

type CheckoutMetrics struct {
	Outcomes *prometheus.CounterVec
	Duration prometheus.Histogram
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storekit",
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by terminal outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "storekit",
		Subsystem: "checkout",
		Name:      "commit_duration_seconds",
		Help:      "Wall time of committed checkouts.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	reg.MustRegister(outcomes, duration)
	return &CheckoutMetrics{Outcomes: outcomes, Duration: duration}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
