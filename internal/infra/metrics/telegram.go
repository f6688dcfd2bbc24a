package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		telegramUpdatesTotal,
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		sessionsEvictedTotal,
		sessionsActive,
	)
}

var (
	telegramUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_total",
			Help: "Inbound updates by type (message, my_chat_member, ignored, dropped).",
		},
		[]string{"type"},
	)

	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming commands and menu actions from users.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	sessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_evicted_total",
			Help: "Idle compose sessions dropped by the sweeper.",
		},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Compose sessions currently held in memory.",
		},
	)
)

func IncTelegramUpdate(kind string) {
	telegramUpdatesTotal.WithLabelValues(norm(kind)).Inc()
}

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func AddSessionsEvicted(n int) {
	if n > 0 {
		sessionsEvictedTotal.Add(float64(n))
	}
}

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}
