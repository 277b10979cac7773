// Package protocol defines the named events exchanged between the relay
// server and its clients, and the JSON envelope that carries them.
package protocol

// Client → server events.
const (
	EventJoinRoom  = "joinRoom"
	EventLeaveRoom = "leaveRoom"
)

// Server → client events.
const (
	EventRoomJoined   = "roomJoined"
	EventJoinError    = "joinError"
	EventPlayerJoined = "playerJoined"
	EventPlayerLeft   = "playerLeft"
	EventHostChanged  = "hostChanged"
)

// Events relayed in both directions.
const (
	EventPlayerUpdate = "playerUpdate"
	EventPlayerShoot  = "playerShoot"
	EventEnemyUpdate  = "enemyUpdate"
)

// UpdateHz is the maximum rate at which a client sends playerUpdate events.
const UpdateHz = 20

// DefaultWeapon is assigned to every player on join.
const DefaultWeapon = "pistol"

// SpawnHeight is the default eye height of a freshly joined player.
const SpawnHeight = 1.6

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation is a view orientation in radians.
type Rotation struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// Player is the wire form of a player record.
type Player struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	RoomID   string   `json:"roomId"`
	Position Vec3     `json:"position"`
	Rotation Rotation `json:"rotation"`
	Weapon   string   `json:"weapon"`
}

// Enemy is the wire form of a host-simulated enemy.
type Enemy struct {
	ID        string `json:"id"`
	Position  Vec3   `json:"position"`
	Direction Vec3   `json:"direction"`
	Alive     bool   `json:"alive"`
}

// JoinRoom asks the server to place the sender in a room.
type JoinRoom struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

// LeaveRoom asks the server to remove the sender from its room without
// closing the connection.
type LeaveRoom struct{}

// RoomJoined is the reply to JoinRoom, sent to the joining connection only.
type RoomJoined struct {
	PlayerID        string   `json:"playerId"`
	RoomID          string   `json:"roomId"`
	IsHost          bool     `json:"isHost"`
	ExistingPlayers []Player `json:"existingPlayers"`
}

// JoinError is the reply to a JoinRoom the server refused.
type JoinError struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

// PlayerLeft announces a departed room member.
type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

// HostChanged announces the room member now publishing enemy state.
type HostChanged struct {
	PlayerID string `json:"playerId"`
}

// PlayerUpdate carries a transform. PlayerID is empty on the client → server
// leg and set by the server when relaying. Seq is optional; zero means the
// update is unsequenced.
type PlayerUpdate struct {
	PlayerID string   `json:"playerId,omitempty"`
	Seq      uint64   `json:"seq,omitempty"`
	Position Vec3     `json:"position"`
	Rotation Rotation `json:"rotation"`
	Weapon   string   `json:"weapon"`
}

// PlayerShoot carries a shot. PlayerID is set by the server when relaying.
type PlayerShoot struct {
	PlayerID  string `json:"playerId,omitempty"`
	Origin    Vec3   `json:"origin"`
	Direction Vec3   `json:"direction"`
	Weapon    string `json:"weapon"`
}

// EnemyUpdate replaces the room's enemy list wholesale.
type EnemyUpdate struct {
	Enemies []Enemy `json:"enemies"`
}
