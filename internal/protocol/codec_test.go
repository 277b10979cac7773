package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WrapsPayload(t *testing.T) {
	b, err := Encode(EventPlayerLeft, PlayerLeft{PlayerID: "a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"playerLeft","data":{"playerId":"a"}}`, string(b))
}

func TestEncode_NilPayloadOmitsData(t *testing.T) {
	b, err := Encode(EventLeaveRoom, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"leaveRoom"}`, string(b))
}

func TestEncode_EmptyEvent(t *testing.T) {
	_, err := Encode("", PlayerLeft{})
	assert.Error(t, err)
}

func TestDecodeEnvelope_Empty(t *testing.T) {
	_, err := DecodeEnvelope(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestDecodeEnvelope_Garbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("{not json"))
	assert.Error(t, err)
}

func TestDecodeEnvelope_UnknownEvent(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"event":"teleport","data":{}}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodePayload_PlayerUpdate(t *testing.T) {
	frame := []byte(`{"event":"playerUpdate","data":{"seq":7,"position":{"x":1,"y":2,"z":3},"rotation":{"yaw":0.5,"pitch":-0.25},"weapon":"rifle"}}`)
	env, err := DecodeEnvelope(frame)
	require.NoError(t, err)

	upd, err := DecodePayload[PlayerUpdate](env)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), upd.Seq)
	assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, upd.Position)
	assert.Equal(t, Rotation{Yaw: 0.5, Pitch: -0.25}, upd.Rotation)
	assert.Equal(t, "rifle", upd.Weapon)
	assert.Empty(t, upd.PlayerID)
}

func TestDecodePayload_MissingDataIsZero(t *testing.T) {
	env := Envelope{Event: EventLeaveRoom}
	v, err := DecodePayload[LeaveRoom](env)
	require.NoError(t, err)
	assert.Equal(t, LeaveRoom{}, v)
}

func TestDecodePayload_WrongShape(t *testing.T) {
	env := Envelope{Event: EventEnemyUpdate, Data: json.RawMessage(`{"enemies":"nope"}`)}
	_, err := DecodePayload[EnemyUpdate](env)
	assert.Error(t, err)
}

func TestRoomJoined_ExistingPlayersSerializesAsArray(t *testing.T) {
	b, err := Encode(EventRoomJoined, RoomJoined{PlayerID: "p", RoomID: "r1", IsHost: true, ExistingPlayers: []Player{}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"existingPlayers":[]`)
}

func TestKnownEvents(t *testing.T) {
	for _, ev := range []string{
		EventJoinRoom, EventLeaveRoom, EventRoomJoined, EventJoinError,
		EventPlayerJoined, EventPlayerLeft, EventHostChanged,
		EventPlayerUpdate, EventPlayerShoot, EventEnemyUpdate,
	} {
		_, err := DecodeEnvelope([]byte(`{"event":"` + ev + `"}`))
		assert.NoError(t, err, "event %q should be known", ev)
	}
	_, err := DecodeEnvelope([]byte(`{"event":"connect"}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestTimingConstants(t *testing.T) {
	assert.Equal(t, 20, UpdateHz)
	assert.Equal(t, 1.6, SpawnHeight)
	assert.Equal(t, "pistol", DefaultWeapon)
}
