package gameserver

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/fpsnet/internal/observability"
	"github.com/cory-johannsen/fpsnet/internal/protocol"
)

func TestHub_BroadcastEncodesOnce(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	a, b := NewOutbox("a", 4), NewOutbox("b", 4)
	hub.Register(a)
	hub.Register(b)

	n := hub.Broadcast([]string{"a", "b", "ghost"}, protocol.EventPlayerLeft, protocol.PlayerLeft{PlayerID: "c"})
	assert.Equal(t, 2, n)

	fa, fb := <-a.Frames(), <-b.Frames()
	assert.Equal(t, fa, fb)
	env, err := protocol.DecodeEnvelope(fa)
	require.NoError(t, err)
	assert.Equal(t, protocol.EventPlayerLeft, env.Event)
}

func TestHub_FullQueueDropsWithoutBlocking(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	hub := NewHub(zaptest.NewLogger(t), metrics)
	slow, fast := NewOutbox("slow", 1), NewOutbox("fast", 8)
	hub.Register(slow)
	hub.Register(fast)

	for i := 0; i < 3; i++ {
		hub.Broadcast([]string{"slow", "fast"}, protocol.EventPlayerShoot, protocol.PlayerShoot{PlayerID: "x"})
	}

	assert.Len(t, slow.frames, 1)
	assert.Len(t, fast.frames, 3)
	assert.Equal(t, float64(2), droppedCount(t, reg, observability.DropQueueFull))
}

func TestHub_SendToUnknownPlayer(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	assert.False(t, hub.SendTo("nobody", protocol.EventHostChanged, protocol.HostChanged{PlayerID: "x"}))
}

func TestHub_UnregisterKeepsNewerOutbox(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	old, replacement := NewOutbox("p", 1), NewOutbox("p", 1)
	hub.Register(old)
	hub.Register(replacement)

	hub.Unregister(old)
	assert.Equal(t, 1, hub.Len())
	hub.Unregister(replacement)
	assert.Equal(t, 0, hub.Len())
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	a, b := NewOutbox("a", 1), NewOutbox("b", 1)
	hub.Register(a)
	hub.Register(b)

	hub.CloseAll()
	assert.True(t, a.IsClosed())
	assert.True(t, b.IsClosed())
}

// droppedCount reads fpsnet_events_dropped_total{reason} from reg.
func droppedCount(t *testing.T, reg *prometheus.Registry, reason string) float64 {
	t.Helper()
	return counterValue(t, reg, "fpsnet_events_dropped_total", "reason", reason)
}

// counterValue reads a counter from reg. An empty label matches the first series.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
