package netproxy

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/protocol"
)

func (p *Proxy) readLoop(conn Conn, gen uint64) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			p.connectionLost(conn, gen, err)
			return
		}
		p.dispatch(gen, frame)
	}
}

func (p *Proxy) connectionLost(conn Conn, gen uint64, err error) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.gen++
	p.resetLocked()
	p.mu.Unlock()

	_ = conn.Close()
	p.logger.Info("connection to relay lost", zap.Error(err))
}

// live reports whether gen is still the current connection.
func (p *Proxy) live(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen == gen
}

func (p *Proxy) dispatch(gen uint64, frame []byte) {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		p.logger.Debug("dropping inbound frame", zap.Error(err))
		return
	}

	switch env.Event {
	case protocol.EventRoomJoined:
		decodeAnd(p, env, func(v protocol.RoomJoined) { p.onRoomJoined(gen, v) })
	case protocol.EventJoinError:
		decodeAnd(p, env, func(v protocol.JoinError) { p.onJoinError(gen, v) })
	case protocol.EventPlayerJoined:
		decodeAnd(p, env, func(v protocol.Player) { p.onPlayerJoined(gen, v) })
	case protocol.EventPlayerUpdate:
		decodeAnd(p, env, func(v protocol.PlayerUpdate) { p.onPlayerUpdate(gen, v) })
	case protocol.EventPlayerShoot:
		decodeAnd(p, env, func(v protocol.PlayerShoot) { p.onPlayerShoot(gen, v) })
	case protocol.EventEnemyUpdate:
		decodeAnd(p, env, func(v protocol.EnemyUpdate) { p.onEnemyUpdate(gen, v) })
	case protocol.EventPlayerLeft:
		decodeAnd(p, env, func(v protocol.PlayerLeft) { p.onPlayerLeft(gen, v) })
	case protocol.EventHostChanged:
		decodeAnd(p, env, func(v protocol.HostChanged) { p.onHostChanged(gen, v) })
	default:
		p.logger.Debug("ignoring client-only event", zap.String("event", env.Event))
	}
}

func decodeAnd[T any](p *Proxy, env protocol.Envelope, fn func(T)) {
	v, err := protocol.DecodePayload[T](env)
	if err != nil {
		p.logger.Debug("dropping malformed payload", zap.String("event", env.Event), zap.Error(err))
		return
	}
	fn(v)
}

func toNetworkPlayer(pl protocol.Player) *NetworkPlayer {
	return &NetworkPlayer{
		ID:       pl.ID,
		Name:     pl.Name,
		Position: pl.Position,
		Rotation: pl.Rotation,
		Weapon:   pl.Weapon,
	}
}

func (p *Proxy) onRoomJoined(gen uint64, rj protocol.RoomJoined) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	if p.state != Connected || rj.RoomID != p.pendingJoin {
		p.mu.Unlock()
		p.logger.Debug("ignoring unsolicited roomJoined", zap.String("room_id", rj.RoomID))
		return
	}
	p.localID = rj.PlayerID
	p.roomID = rj.RoomID
	p.isHost = rj.IsHost
	p.players = make(map[string]*NetworkPlayer, len(rj.ExistingPlayers))
	joined := make([]NetworkPlayer, 0, len(rj.ExistingPlayers))
	for _, pl := range rj.ExistingPlayers {
		if pl.ID == rj.PlayerID {
			continue
		}
		np := toNetworkPlayer(pl)
		p.players[np.ID] = np
		joined = append(joined, *np)
	}
	p.mu.Unlock()

	p.logger.Info("joined room",
		zap.String("room_id", rj.RoomID),
		zap.String("player_id", rj.PlayerID),
		zap.Bool("is_host", rj.IsHost),
		zap.Int("existing_players", len(joined)),
	)

	for _, np := range joined {
		if !p.live(gen) {
			return
		}
		p.listener.OnPlayerJoined(np)
	}
	if rj.IsHost && p.live(gen) {
		p.listener.OnHostStatusChanged(true)
	}

	p.mu.Lock()
	if p.gen == gen && p.state == Connected && p.roomID == rj.RoomID {
		p.state = InRoom
		p.pendingJoin = ""
	}
	p.mu.Unlock()
}

func (p *Proxy) onJoinError(gen uint64, je protocol.JoinError) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.pendingJoin = ""
	p.mu.Unlock()

	p.logger.Info("join refused", zap.String("room_id", je.RoomID), zap.String("reason", je.Reason))
	p.listener.OnJoinFailed(je.RoomID, je.Reason)
}

func (p *Proxy) onPlayerJoined(gen uint64, pl protocol.Player) {
	p.mu.Lock()
	if p.gen != gen || p.roomID == "" || pl.ID == "" || pl.ID == p.localID {
		p.mu.Unlock()
		return
	}
	np := toNetworkPlayer(pl)
	if prev, ok := p.players[pl.ID]; ok {
		np.Visual = prev.Visual
	}
	p.players[pl.ID] = np
	c := *np
	p.mu.Unlock()

	p.listener.OnPlayerJoined(c)
}

func (p *Proxy) onPlayerUpdate(gen uint64, upd protocol.PlayerUpdate) {
	p.mu.Lock()
	if p.gen != gen || p.roomID == "" {
		p.mu.Unlock()
		return
	}
	np, ok := p.players[upd.PlayerID]
	if !ok {
		p.mu.Unlock()
		return
	}
	if upd.Seq != 0 {
		if upd.Seq <= np.seq {
			p.mu.Unlock()
			return
		}
		np.seq = upd.Seq
	}
	np.Position = upd.Position
	np.Rotation = upd.Rotation
	np.Weapon = upd.Weapon
	c := *np
	p.mu.Unlock()

	p.listener.OnPlayerUpdated(c)
}

func (p *Proxy) onPlayerShoot(gen uint64, shot protocol.PlayerShoot) {
	p.mu.Lock()
	if p.gen != gen || p.roomID == "" {
		p.mu.Unlock()
		return
	}
	np, ok := p.players[shot.PlayerID]
	if !ok {
		p.mu.Unlock()
		return
	}
	c := *np
	p.mu.Unlock()

	p.listener.OnPlayerShot(c, Shot{Origin: shot.Origin, Direction: shot.Direction, Weapon: shot.Weapon})
}

func (p *Proxy) onEnemyUpdate(gen uint64, upd protocol.EnemyUpdate) {
	p.mu.Lock()
	ok := p.gen == gen && p.roomID != ""
	p.mu.Unlock()
	if !ok {
		return
	}
	p.listener.OnEnemiesUpdated(append([]protocol.Enemy{}, upd.Enemies...))
}

func (p *Proxy) onPlayerLeft(gen uint64, pl protocol.PlayerLeft) {
	p.mu.Lock()
	if p.gen != gen || p.roomID == "" {
		p.mu.Unlock()
		return
	}
	np, ok := p.players[pl.PlayerID]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.players, pl.PlayerID)
	c := *np
	p.mu.Unlock()

	p.listener.OnPlayerLeft(c)
}

func (p *Proxy) onHostChanged(gen uint64, hc protocol.HostChanged) {
	p.mu.Lock()
	if p.gen != gen || p.roomID == "" {
		p.mu.Unlock()
		return
	}
	nowHost := hc.PlayerID == p.localID
	if nowHost == p.isHost {
		p.mu.Unlock()
		return
	}
	p.isHost = nowHost
	p.mu.Unlock()

	p.logger.Info("host status changed", zap.Bool("is_host", nowHost))
	p.listener.OnHostStatusChanged(nowHost)
}
