package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(syncTriggersTotal, syncRefreshesTotal, syncActiveStreams, changeFeedEventsTotal)
}

var (
	// source: realtime|tick|focus|trigger|initial
	syncTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_sync_triggers_total",
			Help: "Refresh triggers received by membership sync loops, by source.",
		},
		[]string{"source"},
	)

	// result: ok|error
	syncRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_sync_refreshes_total",
			Help: "Membership refreshes actually executed, by result.",
		},
		[]string{"result"},
	)

	syncActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "membership_sync_active",
			Help: "Running membership sync loops.",
		},
	)

	changeFeedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_feed_events_total",
			Help: "Change notifications received from the database, by table.",
		},
		[]string{"table"},
	)
)

func IncSyncTrigger(source string) {
	syncTriggersTotal.WithLabelValues(norm(source)).Inc()
}

func IncSyncRefresh(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	syncRefreshesTotal.WithLabelValues(result).Inc()
}

func AddActiveSync(delta int) {
	syncActiveStreams.Add(float64(delta))
}

func IncChangeFeedEvent(table string) {
	changeFeedEventsTotal.WithLabelValues(norm(table)).Inc()
}
