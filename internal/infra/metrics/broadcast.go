package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		broadcastRunsTotal,
		broadcastSendsTotal,
		broadcastChannelsTotal,
		broadcastDurationSeconds,
	)
}

var (
	broadcastRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_runs_total",
			Help: "Broadcast attempts by outcome (executed, nothing_to_post, empty_draft, no_channels, busy).",
		},
		[]string{"outcome"},
	)

	broadcastSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_sends_total",
			Help: "Individual draft item sends by kind and result (ok, unreachable, failed).",
		},
		[]string{"kind", "result"},
	)

	broadcastChannelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_channels_total",
			Help: "Per-channel broadcast results (delivered, removed, failed).",
		},
		[]string{"result"},
	)

	broadcastDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_duration_seconds",
			Help:    "Wall time of one broadcast run across all channels.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func IncBroadcastRun(outcome string) {
	broadcastRunsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncBroadcastSend(kind, result string) {
	broadcastSendsTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}

func IncBroadcastChannel(result string) {
	broadcastChannelsTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveBroadcastDuration(seconds float64) {
	broadcastDurationSeconds.Observe(seconds)
}
