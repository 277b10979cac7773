// Package gameserver implements the server side of the relay: one Handler per
// websocket connection translating inbound events into registry operations,
// and a Hub fanning outbound events into each connection's bounded queue.
package gameserver

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/game/session"
	"github.com/cory-johannsen/fpsnet/internal/observability"
)

// Relay bundles the shared dependencies of every connection handler.
type Relay struct {
	registry   *session.Registry
	hub        *Hub
	logger     *zap.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer
	sendBuffer int
}

// NewRelay creates a Relay.
//
// Precondition: registry, hub and logger must be non-nil; metrics may be nil;
// a nil tracer selects the global tracer.
func NewRelay(registry *session.Registry, hub *Hub, logger *zap.Logger, metrics *observability.Metrics, tracer trace.Tracer, sendBuffer int) *Relay {
	if tracer == nil {
		tracer = observability.Tracer()
	}
	return &Relay{
		registry:   registry,
		hub:        hub,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
		sendBuffer: sendBuffer,
	}
}

// Registry returns the session registry the relay mutates.
func (r *Relay) Registry() *session.Registry {
	return r.registry
}

// Hub returns the outbound fan-out hub.
func (r *Relay) Hub() *Hub {
	return r.hub
}

// Connect registers a new connection for playerID and returns its handler.
//
// Precondition: playerID must be unique among live connections.
// Postcondition: The handler's outbox is registered with the hub.
func (r *Relay) Connect(playerID string) *Handler {
	out := NewOutbox(playerID, r.sendBuffer)
	r.hub.Register(out)
	return &Handler{
		relay:    r,
		playerID: playerID,
		outbox:   out,
		logger:   r.logger.With(zap.String("player_id", playerID)),
	}
}

func (r *Relay) recordOccupancy() {
	r.metrics.SetOccupancy(r.registry.RoomCount(), r.registry.PlayerCount())
}
