package gameserver

import (
	"github.com/cory-johannsen/fpsnet/internal/game/session"
	"github.com/cory-johannsen/fpsnet/internal/protocol"
)

func vecToWire(v session.Vec3) protocol.Vec3 {
	return protocol.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func vecFromWire(v protocol.Vec3) session.Vec3 {
	return session.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func playerToWire(p session.PlayerRecord) protocol.Player {
	return protocol.Player{
		ID:       p.ID,
		Name:     p.Name,
		RoomID:   p.RoomID,
		Position: vecToWire(p.Transform.Position),
		Rotation: protocol.Rotation{Yaw: p.Transform.Rotation.Yaw, Pitch: p.Transform.Rotation.Pitch},
		Weapon:   p.Weapon,
	}
}

func playersToWire(ps []session.PlayerRecord) []protocol.Player {
	out := make([]protocol.Player, 0, len(ps))
	for _, p := range ps {
		out = append(out, playerToWire(p))
	}
	return out
}

func transformFromWire(u protocol.PlayerUpdate) session.Transform {
	return session.Transform{
		Position: vecFromWire(u.Position),
		Rotation: session.Rotation{Yaw: u.Rotation.Yaw, Pitch: u.Rotation.Pitch},
	}
}

func enemiesFromWire(es []protocol.Enemy) []session.EnemyState {
	out := make([]session.EnemyState, 0, len(es))
	for _, e := range es {
		out = append(out, session.EnemyState{
			ID:        e.ID,
			Position:  vecFromWire(e.Position),
			Direction: vecFromWire(e.Direction),
			Alive:     e.Alive,
		})
	}
	return out
}
