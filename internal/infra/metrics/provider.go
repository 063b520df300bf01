package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(providerCallsTotal, providerCallDuration) }

var (
	// op: create_checkout|capture_payment|cancel_payment
	// result: ok|rejected|network
	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Calls to the payment provider functions by operation and result.",
		},
		[]string{"provider", "op", "result"},
	)

	providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Latency of payment provider function calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "op"},
	)
)

func ObserveProviderCall(provider, op, result string, d time.Duration) {
	providerCallsTotal.WithLabelValues(norm(provider), norm(op), norm(result)).Inc()
	providerCallDuration.WithLabelValues(norm(provider), norm(op)).Observe(d.Seconds())
}
