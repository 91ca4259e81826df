package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	// Session metrics
	activeSessions       prometheus.Gauge
	sessionsCreated      prometheus.Counter
	sessionsDisconnected prometheus.Counter
	ghostEvictions       prometheus.Counter

	// Message metrics
	messagesReceived *prometheus.CounterVec // by message type
	broadcastFanout  *prometheus.HistogramVec

	// Room metrics
	roomMembers *prometheus.GaugeVec

	// Signaling metrics
	signalsRelayed *prometheus.CounterVec
	signalsDropped *prometheus.CounterVec

	// Game metrics
	activeGameSessions prometheus.Gauge
}

// NewMetrics creates and registers a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "atrium_active_sessions",
				Help: "Current number of live connections",
			},
		),
		sessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "atrium_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		sessionsDisconnected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "atrium_sessions_disconnected_total",
				Help: "Total number of sessions disconnected",
			},
		),
		ghostEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "atrium_ghost_evictions_total",
				Help: "Total number of stale sessions evicted on duplicate-identity joins",
			},
		),
		messagesReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_messages_received_total",
				Help: "Total number of messages received from clients by type",
			},
			[]string{"type"},
		),
		broadcastFanout: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atrium_broadcast_fanout",
				Help:    "Number of clients that received each broadcast event",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"type"},
		),
		roomMembers: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "atrium_room_members",
				Help: "Number of connections currently joined per room",
			},
			[]string{"room_id"},
		),
		signalsRelayed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_signals_relayed_total",
				Help: "Total number of WebRTC signaling messages relayed by kind",
			},
			[]string{"kind"},
		),
		signalsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_signals_dropped_total",
				Help: "Total number of WebRTC signaling messages dropped (target gone) by kind",
			},
			[]string{"kind"},
		),
		activeGameSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "atrium_active_game_sessions",
				Help: "Current number of live game sessions",
			},
		),
	}
}

// RecordActiveSessions updates the live connection count.
func (m *Metrics) RecordActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// RecordSessionCreated increments the session creation counter.
func (m *Metrics) RecordSessionCreated() {
	m.sessionsCreated.Inc()
}

// RecordSessionDisconnected increments the session disconnection counter.
func (m *Metrics) RecordSessionDisconnected() {
	m.sessionsDisconnected.Inc()
}

// RecordGhostEviction increments the ghost eviction counter.
func (m *Metrics) RecordGhostEviction() {
	m.ghostEvictions.Inc()
}

// RecordMessageReceived increments the received counter for a type.
func (m *Metrics) RecordMessageReceived(messageType string) {
	m.messagesReceived.WithLabelValues(messageType).Inc()
}

// RecordBroadcast records how many clients received a broadcast.
func (m *Metrics) RecordBroadcast(eventType string, recipients int) {
	m.broadcastFanout.WithLabelValues(eventType).Observe(float64(recipients))
}

// RecordRoomMembers updates the member count for a room.
func (m *Metrics) RecordRoomMembers(roomID string, count int) {
	m.roomMembers.WithLabelValues(roomID).Set(float64(count))
}

// RecordSignalRelayed increments the relayed counter for a signaling kind.
func (m *Metrics) RecordSignalRelayed(kind string) {
	m.signalsRelayed.WithLabelValues(kind).Inc()
}

// RecordSignalDropped increments the dropped counter for a signaling kind.
func (m *Metrics) RecordSignalDropped(kind string) {
	m.signalsDropped.WithLabelValues(kind).Inc()
}

// RecordActiveGameSessions updates the live game session count.
func (m *Metrics) RecordActiveGameSessions(count int) {
	m.activeGameSessions.Set(float64(count))
}
