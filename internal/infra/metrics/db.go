package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, changeFeedReconnects) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	changeFeedReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "change_feed_reconnects_total",
			Help: "Times the LISTEN connection was re-established.",
		},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncChangeFeedReconnect() {
	changeFeedReconnects.Inc()
}
