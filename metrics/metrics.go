// Package metrics exposes the aggregator's Prometheus instrumentation.
// Grounded on the teacher's monitoring/prometheus.go: promauto-registered
// vectors, one file, package-level vars.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_ticks_ingested_total",
			Help: "Total admissible ticks ingested by exchange.",
		},
		[]string{"exchange"},
	)

	TicksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_ticks_rejected_total",
			Help: "Total ticks rejected at ingest, by exchange and reason.",
		},
		[]string{"exchange", "reason"},
	)

	QueueDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_queue_drops_total",
			Help: "Total ticks a queue could not admit even after dropping its oldest item, by queue. Drop-oldest evictions that admitted the new tick are not counted here.",
		},
		[]string{"queue"},
	)

	SpreadPointsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_spread_points_total",
			Help: "Total spread points appended to windows, by symbol.",
		},
		[]string{"symbol"},
	)

	WindowsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_windows_active",
			Help: "Current number of live (exchange1,exchange2,symbol) windows.",
		},
	)

	LatestTicksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_latest_ticks_active",
			Help: "Current number of cached last-tick entries.",
		},
	)

	SignalsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_signals_total",
			Help: "Total signals emitted, by symbol and kind.",
		},
		[]string{"symbol", "kind"},
	)

	WSConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregator_ws_connections",
			Help: "Current WebSocket connections by endpoint.",
		},
		[]string{"endpoint"},
	)

	WSSendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_ws_send_errors_total",
			Help: "Total WebSocket send failures (timeout or closed), by endpoint.",
		},
		[]string{"endpoint"},
	)

	AdaptersReconnecting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_adapters_reconnecting",
			Help: "Number of exchange adapters currently in a reconnect loop.",
		},
	)
)
