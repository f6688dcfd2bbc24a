package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(channelsLinkedTotal, channelsRemovedTotal) }

var (
	channelsLinkedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_channels_linked_total",
			Help: "Channel bindings created or refreshed, by source (command, forward, membership).",
		},
		[]string{"source"},
	)

	channelsRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_bindings_removed_total",
			Help: "Channel bindings deleted, by reason (demoted, unreachable, operator).",
		},
		[]string{"reason"},
	)
)

func IncChannelLinked(source string) {
	channelsLinkedTotal.WithLabelValues(norm(source)).Inc()
}

func AddBindingsRemoved(reason string, n int64) {
	if n <= 0 {
		return
	}
	channelsRemovedTotal.WithLabelValues(norm(reason)).Add(float64(n))
}
