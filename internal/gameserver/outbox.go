package gameserver

import (
	"errors"
	"sync"
)

var (
	// ErrOutboxFull is returned by Push when the queue has no free slot.
	ErrOutboxFull = errors.New("outbox full")
	// ErrOutboxClosed is returned by Push after Close.
	ErrOutboxClosed = errors.New("outbox closed")
)

// Outbox is the bounded outbound frame queue of one connection. Producers
// never block: a full queue rejects the frame.
type Outbox struct {
	id     string
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for the given player id.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an open Outbox holding at most size frames (64 if size <= 0).
func NewOutbox(id string, size int) *Outbox {
	if size <= 0 {
		size = 64
	}
	return &Outbox{
		id:     id,
		frames: make(chan []byte, size),
	}
}

// ID returns the owning player's identifier.
func (o *Outbox) ID() string {
	return o.id
}

// Push enqueues frame without blocking.
//
// Postcondition: frame is enqueued, or ErrOutboxClosed / ErrOutboxFull is returned.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Frames returns the queue the connection writer drains. It is closed by Close.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close closes the queue. Frames already queued remain readable.
//
// Postcondition: Further Push calls return ErrOutboxClosed. Idempotent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}

// IsClosed reports whether Close has been called.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
