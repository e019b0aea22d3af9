package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Record is a channel-backed Session implementation. Send enqueues to an
// outbox drained by the owning transport's writer goroutine, so per-session
// writes are serialized and never interleave.
type Record struct {
	id     uuid.UUID
	outbox chan []byte
	clock  clockwork.Clock

	mu       sync.Mutex
	closed   bool
	lastPong time.Time
}

// NewRecord creates a Record with the given outbox capacity.
//
// Precondition: clock must be non-nil.
// Postcondition: Returns a Record with an open outbox and a fresh liveness marker.
func NewRecord(bufferSize int, clock clockwork.Clock) *Record {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Record{
		id:       uuid.New(),
		outbox:   make(chan []byte, bufferSize),
		clock:    clock,
		lastPong: clock.Now(),
	}
}

// ID returns the stable handle for this connection.
func (r *Record) ID() uuid.UUID {
	return r.id
}

// Send enqueues data for the writer goroutine.
//
// Postcondition: Returns an error when the record is closed or the outbox is
// full; the caller treats either as a failed best-effort delivery.
func (r *Record) Send(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("session %s is closed", r.id)
	}
	select {
	case r.outbox <- data:
		return nil
	default:
		return fmt.Errorf("session %s outbox full", r.id)
	}
}

// Outbox returns the read-only delivery channel. The transport's writer
// goroutine drains it until Close.
func (r *Record) Outbox() <-chan []byte {
	return r.outbox
}

// MarkPongReceived refreshes the liveness marker.
func (r *Record) MarkPongReceived() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPong = r.clock.Now()
}

// LastPong returns the time of the most recent liveness refresh.
func (r *Record) LastPong() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPong
}

// Close marks the record closed and closes the outbox.
//
// Postcondition: Further Send calls return an error. Close is idempotent.
func (r *Record) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		close(r.outbox)
	}
	return nil
}

// IsClosed reports whether the record has been closed.
func (r *Record) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
