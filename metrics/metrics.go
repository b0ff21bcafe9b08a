package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebSocket Metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reminder_ws_connections_active",
		Help: "The current number of connected websocket clients.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_ws_connections_total",
		Help: "The total number of websocket connections accepted.",
	})
	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_broadcast_dropped_total",
		Help: "Broadcast deliveries dropped because a client could not keep up.",
	})

	// Command Metrics
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_commands_total",
		Help: "The total number of commands handled, by type.",
	}, []string{"type"})
	CommandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_command_errors_total",
		Help: "The total number of commands answered with an error, by kind.",
	}, []string{"kind"})

	// Scheduler Metrics
	ScheduledActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reminder_scheduled_active",
		Help: "The current number of pending reminders.",
	})
	Fired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_fired_total",
		Help: "The total number of reminders that fired.",
	})

	// Store Metrics
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_store_errors_total",
		Help: "The total number of failed repository operations, by operation.",
	}, []string{"op"})
)

// Handler serves the default registry for mounting on the main mux.
func Handler() http.Handler {
	return promhttp.Handler()
}
