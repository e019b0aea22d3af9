// Package session defines the contract for one connected client and the
// process-wide registry of live connections. Rooms and the registry hold
// sessions by opaque handle; the transport layer that created a session
// remains the sole owner of its lifetime.
package session

import (
	"github.com/google/uuid"
)

// Session is one live client connection, addressable for direct replies.
// Send must enqueue without blocking the caller; delivery order per session
// is guaranteed by the transport layer.
type Session interface {
	// ID returns the stable handle for this connection.
	ID() uuid.UUID
	// Send enqueues a message for delivery on this connection.
	Send(data []byte) error
	// MarkPongReceived refreshes the liveness marker.
	MarkPongReceived()
}
