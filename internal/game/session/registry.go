package session

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Options tunes a Registry.
type Options struct {
	// DefaultWeapon is assigned to every new player.
	DefaultWeapon string
	// SpawnHeight is the Y coordinate of a new player's position.
	SpawnHeight float64
	// MaxPlayersPerRoom caps room membership; zero means unlimited.
	MaxPlayersPerRoom int
	// HostReelection promotes the earliest-joined remaining member when the
	// host leaves. When false a room without its original host has no host.
	HostReelection bool
}

type room struct {
	mu      sync.Mutex
	id      string
	players map[string]*PlayerRecord
	hostID  string
	enemies []EnemyState
	// closed is set under mu when the last player leaves; a closed room is
	// never reused and Join must look the room id up again.
	closed bool
}

// Registry tracks rooms and the players in them.
// All methods are safe for concurrent use. Each room has its own lock; the
// registry lock only guards the room and player indexes. Locks are always
// taken room first, registry second.
type Registry struct {
	opts Options

	mu    sync.RWMutex
	rooms map[string]*room
	index map[string]*room // player id → room

	joinSeq atomic.Uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:  opts,
		rooms: make(map[string]*room),
		index: make(map[string]*room),
	}
}

func (r *Registry) newRecord(roomID, playerID, name string) *PlayerRecord {
	return &PlayerRecord{
		ID:     playerID,
		Name:   name,
		RoomID: roomID,
		Transform: Transform{
			Position: Vec3{Y: r.opts.SpawnHeight},
		},
		Weapon:    r.opts.DefaultWeapon,
		joinOrder: r.joinSeq.Add(1),
	}
}

// Join places playerID in roomID, creating the room if it does not exist.
//
// Precondition: calls for the same playerID must not run concurrently.
// Postcondition: On success the player is a member of roomID, Existing holds
// the prior members, and IsHost is true iff the room was empty before.
// Returns ErrInvalidID, ErrAlreadyInRoom or ErrRoomFull otherwise.
func (r *Registry) Join(roomID, playerID, playerName string) (JoinResult, error) {
	return r.JoinWith(roomID, playerID, playerName, nil)
}

// JoinWith is Join with a notify hook. notify runs with the room locked, after
// the player is added and before any other operation on the room can observe
// it, so whatever notify enqueues is ordered ahead of every later event for
// the room.
//
// Precondition: notify must not call back into the Registry; it may be nil.
// Postcondition: notify runs exactly once on success and never on error.
func (r *Registry) JoinWith(roomID, playerID, playerName string, notify func(JoinResult)) (JoinResult, error) {
	if roomID == "" || playerID == "" {
		return JoinResult{}, ErrInvalidID
	}

	for {
		r.mu.Lock()
		if cur, ok := r.index[playerID]; ok {
			r.mu.Unlock()
			return JoinResult{}, fmt.Errorf("%w: %q is in %q", ErrAlreadyInRoom, playerID, cur.id)
		}
		rm, ok := r.rooms[roomID]
		if !ok {
			rec := r.newRecord(roomID, playerID, playerName)
			rm = &room{
				id:      roomID,
				players: map[string]*PlayerRecord{playerID: rec},
				hostID:  playerID,
			}
			// The new room is unreachable until r.mu is released, so taking
			// its lock here cannot invert the room-then-registry order.
			rm.mu.Lock()
			r.rooms[roomID] = rm
			r.index[playerID] = rm
			r.mu.Unlock()

			res := JoinResult{Player: *rec, Existing: []PlayerRecord{}, IsHost: true}
			if notify != nil {
				notify(res)
			}
			rm.mu.Unlock()
			return res, nil
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if rm.closed {
			// Emptied between lookup and lock; the id now names a new room.
			rm.mu.Unlock()
			continue
		}
		if r.opts.MaxPlayersPerRoom > 0 && len(rm.players) >= r.opts.MaxPlayersPerRoom {
			rm.mu.Unlock()
			return JoinResult{}, fmt.Errorf("%w: %q has %d players", ErrRoomFull, roomID, len(rm.players))
		}
		existing := rm.recordsLocked()
		rec := r.newRecord(roomID, playerID, playerName)
		rm.players[playerID] = rec
		r.mu.Lock()
		r.index[playerID] = rm
		r.mu.Unlock()

		res := JoinResult{Player: *rec, Existing: existing}
		if notify != nil {
			notify(res)
		}
		rm.mu.Unlock()
		return res, nil
	}
}

// UpdateTransform records a new transform and weapon for playerID.
// A non-zero seq not greater than the last accepted seq is stale and dropped.
//
// Postcondition: Returns the relay targets and true when the update was
// applied; returns false for unknown players and stale updates.
func (r *Registry) UpdateTransform(playerID string, t Transform, weapon string, seq uint64) (Relay, bool) {
	rm := r.roomOf(playerID)
	if rm == nil {
		return Relay{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	p, ok := rm.players[playerID]
	if !ok {
		return Relay{}, false
	}
	if seq != 0 {
		if seq <= p.Seq {
			return Relay{}, false
		}
		p.Seq = seq
	}
	p.Transform = t
	p.Weapon = weapon
	return rm.relayLocked(playerID), true
}

// UpdateEnemies replaces the enemy list of playerID's room. Host status is
// reported in the result but not enforced.
//
// Postcondition: Returns the relay targets and true, or false when playerID
// is not in a room.
func (r *Registry) UpdateEnemies(playerID string, enemies []EnemyState) (Relay, bool) {
	rm := r.roomOf(playerID)
	if rm == nil {
		return Relay{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.players[playerID]; !ok {
		return Relay{}, false
	}
	rm.enemies = append([]EnemyState(nil), enemies...)
	return rm.relayLocked(playerID), true
}

// Peers returns the relay targets for a stateless event from playerID.
func (r *Registry) Peers(playerID string) (Relay, bool) {
	rm := r.roomOf(playerID)
	if rm == nil {
		return Relay{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.players[playerID]; !ok {
		return Relay{}, false
	}
	return rm.relayLocked(playerID), true
}

// Leave removes playerID from its room, deleting the room when it empties.
//
// Postcondition: Returns true on the first call for a member; later calls
// and calls for unknown players return false and change nothing.
func (r *Registry) Leave(playerID string) (LeaveResult, bool) {
	rm := r.roomOf(playerID)
	if rm == nil {
		return LeaveResult{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.players[playerID]; !ok {
		return LeaveResult{}, false
	}
	delete(rm.players, playerID)

	res := LeaveResult{RoomID: rm.id}
	if rm.hostID == playerID {
		rm.hostID = ""
		if r.opts.HostReelection && len(rm.players) > 0 {
			next := rm.recordsLocked()[0]
			rm.hostID = next.ID
			res.NewHostID = next.ID
		}
	}
	res.Remaining = rm.idsLocked("")

	r.mu.Lock()
	delete(r.index, playerID)
	if len(rm.players) == 0 {
		rm.closed = true
		rm.enemies = nil
		if r.rooms[rm.id] == rm {
			delete(r.rooms, rm.id)
		}
		res.RoomClosed = true
	}
	r.mu.Unlock()

	return res, true
}

// Player returns a copy of playerID's record.
func (r *Registry) Player(playerID string) (PlayerRecord, bool) {
	rm := r.roomOf(playerID)
	if rm == nil {
		return PlayerRecord{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	p, ok := rm.players[playerID]
	if !ok {
		return PlayerRecord{}, false
	}
	return *p, true
}

// Room returns a copy of the room's current state.
func (r *Registry) Room(roomID string) (RoomInfo, bool) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return RoomInfo{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return RoomInfo{}, false
	}
	return RoomInfo{
		ID:      rm.id,
		HostID:  rm.hostID,
		Players: rm.recordsLocked(),
		Enemies: append([]EnemyState(nil), rm.enemies...),
	}, true
}

// Rooms lists every active room ordered by id.
func (r *Registry) Rooms() []RoomSummary {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	out := make([]RoomSummary, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.Lock()
		if !rm.closed {
			out = append(out, RoomSummary{ID: rm.id, Players: len(rm.players), HostID: rm.hostID})
		}
		rm.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomCount returns the number of active rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// PlayerCount returns the number of players in any room.
func (r *Registry) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

func (r *Registry) roomOf(playerID string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[playerID]
}

func (rm *room) recordsLocked() []PlayerRecord {
	out := make([]PlayerRecord, 0, len(rm.players))
	for _, p := range rm.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].joinOrder < out[j].joinOrder })
	return out
}

func (rm *room) idsLocked(exclude string) []string {
	recs := rm.recordsLocked()
	out := make([]string, 0, len(recs))
	for _, p := range recs {
		if p.ID != exclude {
			out = append(out, p.ID)
		}
	}
	return out
}

func (rm *room) relayLocked(sender string) Relay {
	return Relay{
		RoomID:   rm.id,
		Peers:    rm.idsLocked(sender),
		FromHost: rm.hostID == sender,
	}
}
