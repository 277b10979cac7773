package gameserver

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/game/session"
	"github.com/cory-johannsen/fpsnet/internal/observability"
	"github.com/cory-johannsen/fpsnet/internal/protocol"
)

// Handler processes the events of one connection. HandleFrame calls are
// serialized, so a connection's events take effect in arrival order.
type Handler struct {
	relay    *Relay
	playerID string
	outbox   *Outbox
	logger   *zap.Logger

	mu     sync.Mutex
	roomID string
	closed bool

	closeOnce sync.Once
}

// PlayerID returns the identifier assigned to this connection.
func (h *Handler) PlayerID() string {
	return h.playerID
}

// Outbox returns the connection's outbound queue.
func (h *Handler) Outbox() *Outbox {
	return h.outbox
}

// RoomID returns the room the connection currently occupies, or "".
func (h *Handler) RoomID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roomID
}

// HandleFrame decodes one inbound frame and applies it. Malformed frames,
// unknown events and events that do not apply to the connection's state are
// logged, counted and otherwise ignored.
//
// Precondition: ctx must be non-nil.
func (h *Handler) HandleFrame(ctx context.Context, frame []byte) {
	metrics := h.relay.metrics

	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		reason := observability.DropMalformed
		if errors.Is(err, protocol.ErrUnknownEvent) {
			reason = observability.DropUnknown
		}
		metrics.EventDropped(reason)
		h.logger.Debug("dropping inbound frame", zap.String("reason", reason), zap.Error(err))
		return
	}
	metrics.EventReceived(env.Event)

	_, span := observability.StartEventSpan(ctx, h.relay.tracer, env.Event, h.playerID)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveHandle(env.Event, time.Since(start)) }()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	switch env.Event {
	case protocol.EventJoinRoom:
		h.handleJoin(span, env)
	case protocol.EventLeaveRoom:
		h.leaveLocked()
	case protocol.EventPlayerUpdate:
		h.handlePlayerUpdate(span, env)
	case protocol.EventPlayerShoot:
		h.handlePlayerShoot(span, env)
	case protocol.EventEnemyUpdate:
		h.handleEnemyUpdate(span, env)
	default:
		// A server → client event sent by a client.
		metrics.EventDropped(observability.DropUnknown)
		h.logger.Debug("dropping server-only event from client", zap.String("event", env.Event))
	}
}

func (h *Handler) decodeFailed(span trace.Span, event string, err error) {
	h.relay.metrics.EventDropped(observability.DropMalformed)
	span.RecordError(err)
	span.SetStatus(codes.Error, "malformed payload")
	h.logger.Debug("dropping malformed payload", zap.String("event", event), zap.Error(err))
}

func (h *Handler) notInRoom(event string) {
	h.relay.metrics.EventDropped(observability.DropNotInRoom)
	h.logger.Debug("dropping event from player outside any room", zap.String("event", event))
}

func (h *Handler) handleJoin(span trace.Span, env protocol.Envelope) {
	req, err := protocol.DecodePayload[protocol.JoinRoom](env)
	if err != nil {
		h.decodeFailed(span, env.Event, err)
		return
	}
	span.SetAttributes(attribute.String("fpsnet.room_id", req.RoomID))

	if h.roomID != "" {
		h.logger.Info("rejoin requested, leaving current room",
			zap.String("from_room", h.roomID),
			zap.String("to_room", req.RoomID),
		)
		h.leaveLocked()
	}

	// The reply and the announcement are queued while the room is locked, so
	// no event for the room can reach the joiner ahead of its roomJoined.
	res, err := h.relay.registry.JoinWith(req.RoomID, h.playerID, req.PlayerName, func(res session.JoinResult) {
		h.relay.hub.SendTo(h.playerID, protocol.EventRoomJoined, protocol.RoomJoined{
			PlayerID:        h.playerID,
			RoomID:          req.RoomID,
			IsHost:          res.IsHost,
			ExistingPlayers: playersToWire(res.Existing),
		})
		peers := make([]string, 0, len(res.Existing))
		for _, p := range res.Existing {
			peers = append(peers, p.ID)
		}
		h.relay.hub.Broadcast(peers, protocol.EventPlayerJoined, playerToWire(res.Player))
	})
	if err != nil {
		h.relay.metrics.EventDropped(observability.DropJoinFailed)
		span.RecordError(err)
		h.logger.Info("join refused", zap.String("room_id", req.RoomID), zap.Error(err))
		h.relay.hub.SendTo(h.playerID, protocol.EventJoinError, protocol.JoinError{
			RoomID: req.RoomID,
			Reason: joinErrorReason(err),
		})
		return
	}
	h.roomID = req.RoomID
	h.relay.recordOccupancy()

	h.logger.Info("player joined room",
		zap.String("room_id", req.RoomID),
		zap.String("player_name", req.PlayerName),
		zap.Bool("is_host", res.IsHost),
		zap.Int("existing_players", len(res.Existing)),
	)
}

func joinErrorReason(err error) string {
	switch {
	case errors.Is(err, session.ErrRoomFull):
		return "room is full"
	case errors.Is(err, session.ErrInvalidID):
		return "room id must be non-empty"
	default:
		return err.Error()
	}
}

func (h *Handler) handlePlayerUpdate(span trace.Span, env protocol.Envelope) {
	upd, err := protocol.DecodePayload[protocol.PlayerUpdate](env)
	if err != nil {
		h.decodeFailed(span, env.Event, err)
		return
	}
	if h.roomID == "" {
		h.notInRoom(env.Event)
		return
	}
	relay, ok := h.relay.registry.UpdateTransform(h.playerID, transformFromWire(upd), upd.Weapon, upd.Seq)
	if !ok {
		h.relay.metrics.EventDropped(observability.DropStale)
		return
	}
	upd.PlayerID = h.playerID
	h.relay.hub.Broadcast(relay.Peers, protocol.EventPlayerUpdate, upd)
}

func (h *Handler) handlePlayerShoot(span trace.Span, env protocol.Envelope) {
	shot, err := protocol.DecodePayload[protocol.PlayerShoot](env)
	if err != nil {
		h.decodeFailed(span, env.Event, err)
		return
	}
	relay, ok := h.relay.registry.Peers(h.playerID)
	if !ok {
		h.notInRoom(env.Event)
		return
	}
	shot.PlayerID = h.playerID
	h.relay.hub.Broadcast(relay.Peers, protocol.EventPlayerShoot, shot)
}

func (h *Handler) handleEnemyUpdate(span trace.Span, env protocol.Envelope) {
	upd, err := protocol.DecodePayload[protocol.EnemyUpdate](env)
	if err != nil {
		h.decodeFailed(span, env.Event, err)
		return
	}
	relay, ok := h.relay.registry.UpdateEnemies(h.playerID, enemiesFromWire(upd.Enemies))
	if !ok {
		h.notInRoom(env.Event)
		return
	}
	if !relay.FromHost {
		h.relay.metrics.NonHostEnemyUpdate()
		h.logger.Warn("enemyUpdate from non-host player", zap.String("room_id", relay.RoomID))
	}
	if upd.Enemies == nil {
		upd.Enemies = []protocol.Enemy{}
	}
	h.relay.hub.Broadcast(relay.Peers, protocol.EventEnemyUpdate, upd)
}

// leaveLocked runs the leave path. h.mu must be held.
func (h *Handler) leaveLocked() {
	h.roomID = ""
	res, ok := h.relay.registry.Leave(h.playerID)
	if !ok {
		return
	}
	h.relay.recordOccupancy()
	h.logger.Info("player left room",
		zap.String("room_id", res.RoomID),
		zap.Int("remaining", len(res.Remaining)),
		zap.Bool("room_closed", res.RoomClosed),
	)

	h.relay.hub.Broadcast(res.Remaining, protocol.EventPlayerLeft, protocol.PlayerLeft{PlayerID: h.playerID})
	if res.NewHostID != "" {
		h.logger.Info("room host changed",
			zap.String("room_id", res.RoomID),
			zap.String("new_host_id", res.NewHostID),
		)
		h.relay.hub.Broadcast(res.Remaining, protocol.EventHostChanged, protocol.HostChanged{PlayerID: res.NewHostID})
	}
}

// Close runs the leave path, unregisters the connection and closes its
// outbox. Safe to call from any goroutine.
//
// Postcondition: Only the first call has any effect.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.leaveLocked()
		h.closed = true
		h.mu.Unlock()

		h.relay.hub.Unregister(h.outbox)
		h.outbox.Close()
		h.logger.Debug("connection handler closed")
	})
}
