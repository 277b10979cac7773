package gameserver

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/observability"
	"github.com/cory-johannsen/fpsnet/internal/protocol"
)

// Hub maps player ids to their connection outboxes and fans events out to
// them. Sends never block on the receiving connection.
type Hub struct {
	logger  *zap.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	outboxes map[string]*Outbox
}

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil; metrics may be nil.
func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		logger:   logger,
		metrics:  metrics,
		outboxes: make(map[string]*Outbox),
	}
}

// Register makes out addressable by its id, replacing any previous entry.
func (h *Hub) Register(out *Outbox) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outboxes[out.ID()] = out
}

// Unregister removes id if it still maps to out.
func (h *Hub) Unregister(out *Outbox) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.outboxes[out.ID()]; ok && cur == out {
		delete(h.outboxes, out.ID())
	}
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.outboxes)
}

// SendTo encodes payload once and enqueues it for a single player.
//
// Postcondition: Returns true when the frame was enqueued.
func (h *Hub) SendTo(playerID, event string, payload any) bool {
	return h.Broadcast([]string{playerID}, event, payload) == 1
}

// Broadcast encodes payload once and enqueues it for every listed player.
// Unknown ids, closed outboxes and full queues are skipped.
//
// Postcondition: Returns the number of players the frame was enqueued for.
func (h *Hub) Broadcast(playerIDs []string, event string, payload any) int {
	if len(playerIDs) == 0 {
		return 0
	}
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.logger.Error("encoding outbound event",
			zap.String("event", event),
			zap.Error(err),
		)
		return 0
	}

	h.mu.RLock()
	targets := make([]*Outbox, 0, len(playerIDs))
	for _, id := range playerIDs {
		if out, ok := h.outboxes[id]; ok {
			targets = append(targets, out)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, out := range targets {
		if err := out.Push(frame); err != nil {
			if errors.Is(err, ErrOutboxFull) {
				h.metrics.EventDropped(observability.DropQueueFull)
				h.logger.Debug("outbound queue full, dropping event",
					zap.String("player_id", out.ID()),
					zap.String("event", event),
				)
			}
			continue
		}
		sent++
	}
	h.metrics.EventSent(event, sent)
	return sent
}

// CloseAll closes every registered outbox, which ends each connection's
// writer and, through it, the connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	all := make([]*Outbox, 0, len(h.outboxes))
	for _, out := range h.outboxes {
		all = append(all, out)
	}
	h.mu.RUnlock()

	for _, out := range all {
		out.Close()
	}
}
