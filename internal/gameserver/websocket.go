package gameserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/config"
)

// WSEndpoint upgrades HTTP requests to websocket connections and runs one
// Handler per connection.
type WSEndpoint struct {
	relay    *Relay
	cfg      config.WebSocketConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
	newID    func() string
}

// NewWSEndpoint creates a websocket endpoint for relay.
//
// Precondition: relay and logger must be non-nil; cfg must have passed validation.
func NewWSEndpoint(relay *Relay, cfg config.WebSocketConfig, logger *zap.Logger) *WSEndpoint {
	return &WSEndpoint{
		relay:  relay,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		newID: uuid.NewString,
	}
}

// originChecker accepts every origin when allowed is empty, otherwise only
// the listed origins (case-insensitive). Requests without an Origin header
// are non-browser clients and are accepted.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[normalizeOrigin(o)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[normalizeOrigin(origin)]
		return ok
	}
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

// ServeHTTP upgrades the request and blocks until the connection ends.
func (e *WSEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		e.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	h := e.relay.Connect(e.newID())
	e.logger.Info("connection opened",
		zap.String("player_id", h.PlayerID()),
		zap.String("remote_addr", r.RemoteAddr),
	)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		e.writePump(conn, h)
	}()

	e.readPump(r.Context(), conn, h)

	// Every exit of the read loop resolves to the leave path.
	h.Close()
	<-writerDone
	e.logger.Info("connection closed", zap.String("player_id", h.PlayerID()))
}

func (e *WSEndpoint) readPump(ctx context.Context, conn *websocket.Conn, h *Handler) {
	if e.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(e.cfg.MaxMessageBytes)
	}
	extend := func() {
		if e.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(e.cfg.ReadTimeout))
		}
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				e.logger.Debug("websocket read error",
					zap.String("player_id", h.PlayerID()),
					zap.Error(err),
				)
			}
			return
		}
		extend()
		if msgType != websocket.TextMessage {
			continue
		}
		h.HandleFrame(ctx, msg)
	}
}

func (e *WSEndpoint) writePump(conn *websocket.Conn, h *Handler) {
	var pings <-chan time.Time
	if e.cfg.PingInterval > 0 {
		ticker := time.NewTicker(e.cfg.PingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}
	defer conn.Close()

	deadline := func() time.Time {
		if e.cfg.WriteTimeout > 0 {
			return time.Now().Add(e.cfg.WriteTimeout)
		}
		return time.Time{}
	}

	frames := h.Outbox().Frames()
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(deadline())
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				e.logger.Debug("websocket write failed",
					zap.String("player_id", h.PlayerID()),
					zap.Error(err),
				)
				// Closing the conn unblocks the reader, which runs the leave path.
				_ = conn.Close()
				drain(frames)
				return
			}
		case <-pings:
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline()); err != nil {
				_ = conn.Close()
				drain(frames)
				return
			}
		}
	}
}

// drain discards frames until the outbox is closed.
func drain(frames <-chan []byte) {
	for range frames {
	}
}
