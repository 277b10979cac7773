package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded by Metrics.EventDropped.
const (
	DropQueueFull  = "queue_full"
	DropMalformed  = "malformed"
	DropUnknown    = "unknown_event"
	DropNotInRoom  = "not_in_room"
	DropStale      = "stale"
	DropJoinFailed = "join_failed"
)

// Metrics holds the relay's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	roomsActive      prometheus.Gauge
	playersConnected prometheus.Gauge
	eventsReceived   *prometheus.CounterVec
	eventsSent       *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	nonHostEnemy     prometheus.Counter
	handleDuration   *prometheus.HistogramVec
}

// NewMetrics registers the relay collectors with reg.
//
// Precondition: reg must be non-nil and must not already hold these collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	const ns = "fpsnet"

	return &Metrics{
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "rooms_active",
			Help:      "Number of rooms with at least one player",
		}),
		playersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "players_connected",
			Help:      "Number of players currently in a room",
		}),
		eventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_received_total",
			Help:      "Inbound events by name",
		}, []string{"event"}),
		eventsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_sent_total",
			Help:      "Outbound events enqueued by name",
		}, []string{"event"}),
		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_dropped_total",
			Help:      "Events dropped without effect, by reason",
		}, []string{"reason"}),
		nonHostEnemy: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "enemy_updates_nonhost_total",
			Help:      "enemyUpdate events sent by a player that is not the room host",
		}),
		handleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "event_handle_seconds",
			Help:      "Time spent handling one inbound event",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}, []string{"event"}),
	}
}

// SetOccupancy records the current room and player counts.
func (m *Metrics) SetOccupancy(rooms, players int) {
	if m == nil {
		return
	}
	m.roomsActive.Set(float64(rooms))
	m.playersConnected.Set(float64(players))
}

// EventReceived counts one inbound event.
func (m *Metrics) EventReceived(event string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(event).Inc()
}

// EventSent counts n outbound copies of event.
func (m *Metrics) EventSent(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsSent.WithLabelValues(event).Add(float64(n))
}

// EventDropped counts one dropped event.
func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

// NonHostEnemyUpdate counts an enemyUpdate from a non-host player.
func (m *Metrics) NonHostEnemyUpdate() {
	if m == nil {
		return
	}
	m.nonHostEnemy.Inc()
}

// ObserveHandle records how long handling event took.
func (m *Metrics) ObserveHandle(event string, d time.Duration) {
	if m == nil {
		return
	}
	m.handleDuration.WithLabelValues(event).Observe(d.Seconds())
}
