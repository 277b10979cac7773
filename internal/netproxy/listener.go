// Package netproxy is the client side of the relay: it owns the local mirror
// of remote players, throttles outgoing position updates and reports room
// activity to the rendering layer through a Listener.
package netproxy

import "github.com/cory-johannsen/fpsnet/internal/protocol"

// NetworkPlayer is the client mirror of one remote player.
type NetworkPlayer struct {
	ID       string
	Name     string
	Position protocol.Vec3
	Rotation protocol.Rotation
	Weapon   string
	// Visual is an opaque handle owned by the rendering layer.
	Visual any

	seq uint64
}

// Shot is a remote player's shot.
type Shot struct {
	Origin    protocol.Vec3
	Direction protocol.Vec3
	Weapon    string
}

// Listener receives room activity. Methods are called from the proxy's
// receive goroutine, one at a time, after the mirror has been updated, and
// may call back into the Proxy.
type Listener interface {
	OnPlayerJoined(p NetworkPlayer)
	OnPlayerUpdated(p NetworkPlayer)
	OnPlayerLeft(p NetworkPlayer)
	OnPlayerShot(p NetworkPlayer, shot Shot)
	OnEnemiesUpdated(enemies []protocol.Enemy)
	OnHostStatusChanged(isHost bool)
	OnJoinFailed(roomID, reason string)
}

// NopListener ignores every callback.
type NopListener struct{}

func (NopListener) OnPlayerJoined(NetworkPlayer) {}
func (NopListener) OnPlayerUpdated(NetworkPlayer) {}
func (NopListener) OnPlayerLeft(NetworkPlayer) {}
func (NopListener) OnPlayerShot(NetworkPlayer, Shot) {}
func (NopListener) OnEnemiesUpdated([]protocol.Enemy) {}
func (NopListener) OnHostStatusChanged(bool) {}
func (NopListener) OnJoinFailed(string, string) {}

// ListenerFuncs adapts optional functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	PlayerJoined      func(p NetworkPlayer)
	PlayerUpdated     func(p NetworkPlayer)
	PlayerLeft        func(p NetworkPlayer)
	PlayerShot        func(p NetworkPlayer, shot Shot)
	EnemiesUpdated    func(enemies []protocol.Enemy)
	HostStatusChanged func(isHost bool)
	JoinFailed        func(roomID, reason string)
}

func (f ListenerFuncs) OnPlayerJoined(p NetworkPlayer) {
	if f.PlayerJoined != nil {
		f.PlayerJoined(p)
	}
}

func (f ListenerFuncs) OnPlayerUpdated(p NetworkPlayer) {
	if f.PlayerUpdated != nil {
		f.PlayerUpdated(p)
	}
}

func (f ListenerFuncs) OnPlayerLeft(p NetworkPlayer) {
	if f.PlayerLeft != nil {
		f.PlayerLeft(p)
	}
}

func (f ListenerFuncs) OnPlayerShot(p NetworkPlayer, shot Shot) {
	if f.PlayerShot != nil {
		f.PlayerShot(p, shot)
	}
}

func (f ListenerFuncs) OnEnemiesUpdated(enemies []protocol.Enemy) {
	if f.EnemiesUpdated != nil {
		f.EnemiesUpdated(enemies)
	}
}

func (f ListenerFuncs) OnHostStatusChanged(isHost bool) {
	if f.HostStatusChanged != nil {
		f.HostStatusChanged(isHost)
	}
}

func (f ListenerFuncs) OnJoinFailed(roomID, reason string) {
	if f.JoinFailed != nil {
		f.JoinFailed(roomID, reason)
	}
}
