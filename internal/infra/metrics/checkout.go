package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		checkoutSessionsTotal,
		checkoutCancellationsTotal,
		checkoutOpenSessions,
	)
}

var (
	// state: created|completed|cancelled|failed
	checkoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Checkout sessions by the state they reached.",
		},
		[]string{"state"},
	)

	// trigger: user_cancel|provider_error|capture_failed|teardown|expired
	checkoutCancellationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_cancellations_total",
			Help: "Compensating cancellations by what triggered them.",
		},
		[]string{"trigger"},
	)

	checkoutOpenSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_open_sessions",
			Help: "Checkout session handles currently held by the desk.",
		},
	)
)

func IncCheckoutSession(state string) {
	checkoutSessionsTotal.WithLabelValues(norm(state)).Inc()
}

func IncCheckoutCancellation(trigger string) {
	checkoutCancellationsTotal.WithLabelValues(norm(trigger)).Inc()
}

func SetOpenCheckoutSessions(n int) {
	checkoutOpenSessions.Set(float64(n))
}
