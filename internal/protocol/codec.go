package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyFrame is returned when decoding a zero-length frame.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrUnknownEvent is returned for envelopes naming an event this
	// package does not define.
	ErrUnknownEvent = errors.New("unknown event")
)

// Envelope is the frame carried by every websocket text message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var knownEvents = map[string]bool{
	EventJoinRoom:     true,
	EventLeaveRoom:    true,
	EventRoomJoined:   true,
	EventJoinError:    true,
	EventPlayerJoined: true,
	EventPlayerLeft:   true,
	EventHostChanged:  true,
	EventPlayerUpdate: true,
	EventPlayerShoot:  true,
	EventEnemyUpdate:  true,
}

// Encode marshals payload and wraps it in an envelope for event.
//
// Precondition: event must be non-empty.
// Postcondition: Returns the JSON frame or a non-nil error.
func Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, errors.New("encoding envelope: empty event name")
	}
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// DecodeEnvelope parses a frame and checks that it names a known event.
//
// Postcondition: Returns the envelope, or ErrEmptyFrame / ErrUnknownEvent /
// a JSON syntax error.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyFrame
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if !knownEvents[env.Event] {
		return env, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return env, nil
}

// DecodePayload unmarshals the envelope data into a T. A missing payload
// yields the zero T, so events without a body (leaveRoom) decode cleanly.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decoding %s payload: %w", env.Event, err)
	}
	return out, nil
}
