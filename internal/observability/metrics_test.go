package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.EventReceived("playerUpdate")
	m.EventReceived("playerUpdate")
	m.EventSent("playerUpdate", 3)
	m.EventSent("playerUpdate", 0)
	m.EventDropped(DropQueueFull)
	m.NonHostEnemyUpdate()
	m.SetOccupancy(2, 5)
	m.ObserveHandle("playerUpdate", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsReceived.WithLabelValues("playerUpdate")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.eventsSent.WithLabelValues("playerUpdate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped.WithLabelValues(DropQueueFull)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nonHostEnemy))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.roomsActive))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.playersConnected))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "fpsnet_event_handle_seconds")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventReceived("x")
		m.EventSent("x", 1)
		m.EventDropped("y")
		m.NonHostEnemyUpdate()
		m.SetOccupancy(1, 1)
		m.ObserveHandle("x", time.Second)
	})
}
