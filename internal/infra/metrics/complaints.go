package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(complaintsTotal) }

// result: attached|not_found|invalid|error
var complaintsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "complaints_total",
		Help: "Complaint submissions by outcome.",
	},
	[]string{"result"},
)

func IncComplaint(result string) {
	complaintsTotal.WithLabelValues(norm(result)).Inc()
}
