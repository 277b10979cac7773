// Package session provides the room and player registry for the relay
// server: which players are connected, which room each occupies, their last
// reported transform, and the room's shared enemy state.
package session

import "errors"

var (
	// ErrRoomFull is returned by Join when the room is at capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrAlreadyInRoom is returned by Join when the player already occupies a room.
	ErrAlreadyInRoom = errors.New("player already in a room")
	// ErrInvalidID is returned by Join for an empty room or player identifier.
	ErrInvalidID = errors.New("room and player identifiers must be non-empty")
)

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X, Y, Z float64
}

// Rotation is a view orientation.
type Rotation struct {
	Yaw, Pitch float64
}

// Transform is a player's position and rotation at a point in time.
type Transform struct {
	Position Vec3
	Rotation Rotation
}

// EnemyState is one entry of a room's host-simulated enemy list.
type EnemyState struct {
	ID        string
	Position  Vec3
	Direction Vec3
	Alive     bool
}

// PlayerRecord is the server-side state of one connected player.
type PlayerRecord struct {
	// ID equals the owning connection's identifier.
	ID string
	// Name is the display name supplied on join.
	Name string
	// RoomID is the room the player occupies.
	RoomID string
	// Transform is the last accepted position and rotation.
	Transform Transform
	// Weapon is the currently selected weapon.
	Weapon string
	// Seq is the sequence number of the last accepted sequenced update.
	Seq uint64

	joinOrder uint64
}

// JoinResult is returned by Join.
type JoinResult struct {
	// Player is the newly created record.
	Player PlayerRecord
	// Existing holds every other member of the room at the time of the join,
	// ordered by join time. Never nil.
	Existing []PlayerRecord
	// IsHost is true when the room was empty before this join.
	IsHost bool
}

// LeaveResult is returned by Leave.
type LeaveResult struct {
	RoomID string
	// Remaining are the ids still in the room, ordered by join time.
	Remaining []string
	// NewHostID is set when the departing player was host and another
	// member was promoted.
	NewHostID string
	// RoomClosed is true when the departure emptied the room.
	RoomClosed bool
}

// Relay identifies where an event from a player must be forwarded.
type Relay struct {
	RoomID string
	// Peers are the other members of the sender's room.
	Peers []string
	// FromHost reports whether the sender is the room host.
	FromHost bool
}

// RoomInfo is a point-in-time copy of a room.
type RoomInfo struct {
	ID      string
	HostID  string
	Players []PlayerRecord
	Enemies []EnemyState
}

// RoomSummary is the listing form of a room.
type RoomSummary struct {
	ID      string `json:"roomId"`
	Players int    `json:"players"`
	HostID  string `json:"hostId,omitempty"`
}
