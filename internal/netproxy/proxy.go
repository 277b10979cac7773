package netproxy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/protocol"
)

var (
	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by Connect unless the proxy is Disconnected.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrConnectAborted is returned by Connect when Disconnect ran during the dial.
	ErrConnectAborted = errors.New("connect aborted by disconnect")
)

// State is the proxy's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	InRoom
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case InRoom:
		return "in_room"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tunes a Proxy.
type Options struct {
	// UpdateInterval is the minimum spacing of accepted SendPlayerUpdate
	// calls. Zero selects 1s/protocol.UpdateHz.
	UpdateInterval time.Duration
	// Dialer opens the transport. Nil selects a WSDialer.
	Dialer Dialer
	// Logger may be nil.
	Logger *zap.Logger
	// Now is the throttle clock. Nil selects time.Now.
	Now func() time.Time
}

// Proxy is the client-side network proxy. All methods are safe for
// concurrent use; listener callbacks run on the receive goroutine.
type Proxy struct {
	listener Listener
	dialer   Dialer
	logger   *zap.Logger
	throttle *Throttle

	mu      sync.Mutex
	state   State
	conn    Conn
	gen     uint64 // bumped whenever the current connection is abandoned
	localID string
	roomID  string
	isHost  bool
	// pendingJoin is the room a JoinRoom is waiting on, until roomJoined
	// completes it or joinError refuses it.
	pendingJoin string
	players map[string]*NetworkPlayer
	seq     uint64
}

// New creates a disconnected Proxy reporting to listener.
//
// Precondition: listener must be non-nil.
func New(listener Listener, opts Options) *Proxy {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = time.Second / protocol.UpdateHz
	}
	if opts.Dialer == nil {
		opts.Dialer = WSDialer{HandshakeTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Proxy{
		listener: listener,
		dialer:   opts.Dialer,
		logger:   opts.Logger,
		throttle: NewThrottle(opts.UpdateInterval, opts.Now),
		players:  make(map[string]*NetworkPlayer),
	}
}

// Connect dials url and starts receiving.
//
// Precondition: the proxy must be Disconnected.
// Postcondition: On success the proxy is Connected; otherwise Disconnected
// and a non-nil error is returned.
func (p *Proxy) Connect(ctx context.Context, url string) error {
	p.mu.Lock()
	if p.state != Disconnected {
		p.mu.Unlock()
		return ErrAlreadyConnected
	}
	p.state = Connecting
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	conn, err := p.dialer.Dial(ctx, url)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrConnectAborted
	}
	if err != nil {
		p.state = Disconnected
		p.mu.Unlock()
		return err
	}
	p.conn = conn
	p.state = Connected
	p.mu.Unlock()

	p.logger.Info("connected to relay", zap.String("url", url))
	go p.readLoop(conn, gen)
	return nil
}

// Disconnect closes the connection and clears the mirror. Events received
// after Disconnect are never delivered to the listener; a callback already
// past its connection check may still be running when Disconnect returns.
// Idempotent.
func (p *Proxy) Disconnect() {
	p.mu.Lock()
	conn := p.conn
	p.gen++
	p.resetLocked()
	p.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		p.logger.Info("disconnected from relay")
	}
}

func (p *Proxy) resetLocked() {
	p.state = Disconnected
	p.conn = nil
	p.localID = ""
	p.roomID = ""
	p.isHost = false
	p.pendingJoin = ""
	p.players = make(map[string]*NetworkPlayer)
	p.seq = 0
	p.throttle.Reset()
}

// JoinRoom asks the relay to place this client in roomID. The outcome
// arrives asynchronously: InRoom after roomJoined, or OnJoinFailed. Only one
// join may be outstanding.
//
// Postcondition: Returns false without sending unless the proxy is
// Connected, no join is pending and roomID is non-empty.
func (p *Proxy) JoinRoom(roomID, playerName string) bool {
	p.mu.Lock()
	if p.state != Connected || p.pendingJoin != "" || roomID == "" {
		p.mu.Unlock()
		return false
	}
	p.pendingJoin = roomID
	conn := p.conn
	p.mu.Unlock()

	return p.send(conn, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: roomID, PlayerName: playerName}) == nil
}

// LeaveRoom leaves the current room and keeps the connection. The mirror is
// cleared without callbacks.
//
// Postcondition: Returns false unless the proxy was InRoom.
func (p *Proxy) LeaveRoom() bool {
	p.mu.Lock()
	if p.state != InRoom {
		p.mu.Unlock()
		return false
	}
	p.state = Connected
	p.roomID = ""
	p.isHost = false
	p.players = make(map[string]*NetworkPlayer)
	conn := p.conn
	p.mu.Unlock()

	return p.send(conn, protocol.EventLeaveRoom, nil) == nil
}

// SendPlayerUpdate sends the local transform, at most once per update interval.
//
// Postcondition: Returns true when the update was sent; false when not
// InRoom, throttled, or the write failed.
func (p *Proxy) SendPlayerUpdate(position protocol.Vec3, rotation protocol.Rotation, weapon string) bool {
	p.mu.Lock()
	if p.state != InRoom || !p.throttle.Allow() {
		p.mu.Unlock()
		return false
	}
	p.seq++
	upd := protocol.PlayerUpdate{Seq: p.seq, Position: position, Rotation: rotation, Weapon: weapon}
	conn := p.conn
	p.mu.Unlock()

	return p.send(conn, protocol.EventPlayerUpdate, upd) == nil
}

// SendShootEvent sends a shot. Shots are never throttled.
//
// Postcondition: Returns false when not InRoom or the write failed.
func (p *Proxy) SendShootEvent(origin, direction protocol.Vec3, weapon string) bool {
	conn, ok := p.roomConn()
	if !ok {
		return false
	}
	return p.send(conn, protocol.EventPlayerShoot, protocol.PlayerShoot{Origin: origin, Direction: direction, Weapon: weapon}) == nil
}

// SendEnemyUpdate publishes the room's enemy list. By convention only the
// host calls it; the relay accepts it from anyone.
//
// Postcondition: Returns false when not InRoom or the write failed.
func (p *Proxy) SendEnemyUpdate(enemies []protocol.Enemy) bool {
	conn, ok := p.roomConn()
	if !ok {
		return false
	}
	if enemies == nil {
		enemies = []protocol.Enemy{}
	}
	return p.send(conn, protocol.EventEnemyUpdate, protocol.EnemyUpdate{Enemies: enemies}) == nil
}

func (p *Proxy) roomConn() (Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != InRoom {
		return nil, false
	}
	return p.conn, true
}

func (p *Proxy) send(conn Conn, event string, payload any) error {
	if conn == nil {
		return ErrNotConnected
	}
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		p.logger.Error("encoding outbound event", zap.String("event", event), zap.Error(err))
		return err
	}
	if err := conn.WriteMessage(frame); err != nil {
		p.logger.Warn("write failed, closing connection", zap.String("event", event), zap.Error(err))
		// The receive loop observes the close and runs the disconnect path.
		_ = conn.Close()
		return err
	}
	return nil
}

// State returns the current connection state.
func (p *Proxy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsMultiplayerActive reports whether the proxy is in a room.
func (p *Proxy) IsMultiplayerActive() bool {
	return p.State() == InRoom
}

// LocalID returns the id the relay assigned this client, or "" before roomJoined.
func (p *Proxy) LocalID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.localID
}

// RoomID returns the joined room, or "".
func (p *Proxy) RoomID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roomID
}

// IsHost reports whether this client currently publishes the room's enemies.
func (p *Proxy) IsHost() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isHost
}

// GetNetworkPlayers returns copies of the mirrored players ordered by id.
func (p *Proxy) GetNetworkPlayers() []NetworkPlayer {
	p.mu.Lock()
	out := make([]NetworkPlayer, 0, len(p.players))
	for _, np := range p.players {
		out = append(out, *np)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NetworkPlayer returns a copy of one mirrored player.
func (p *Proxy) NetworkPlayer(id string) (NetworkPlayer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	np, ok := p.players[id]
	if !ok {
		return NetworkPlayer{}, false
	}
	return *np, true
}

// SetVisualHandle attaches the rendering layer's handle to a mirrored player.
//
// Postcondition: Returns false when id is not mirrored.
func (p *Proxy) SetVisualHandle(id string, handle any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	np, ok := p.players[id]
	if !ok {
		return false
	}
	np.Visual = handle
	return true
}
