// Package testutil provides test doubles and network helpers shared by the
// session server's test suites.
package testutil

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// FakeSession is an in-memory session.Session implementation that records
// every message sent to it. Safe for concurrent use.
type FakeSession struct {
	id uuid.UUID

	mu        sync.Mutex
	sent      [][]byte
	failSends bool
	pongs     int
}

// NewFakeSession creates a FakeSession with a fresh handle.
func NewFakeSession() *FakeSession {
	return &FakeSession{id: uuid.New()}
}

// ID returns the session handle.
func (s *FakeSession) ID() uuid.UUID { return s.id }

// Send records data, or fails when FailSends was called.
func (s *FakeSession) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSends {
		return errors.New("send failed")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.sent = append(s.sent, buf)
	return nil
}

// MarkPongReceived counts liveness refreshes.
func (s *FakeSession) MarkPongReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pongs++
}

// FailSends makes every subsequent Send return an error.
func (s *FakeSession) FailSends() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSends = true
}

// Sent returns a snapshot of all recorded messages.
func (s *FakeSession) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// SentJSON decodes every recorded message into a generic map, skipping any
// that are not JSON objects.
func (s *FakeSession) SentJSON() []map[string]any {
	var out []map[string]any
	for _, raw := range s.Sent() {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// SentTypes returns the "type" discriminator of each recorded message, in
// delivery order.
func (s *FakeSession) SentTypes() []string {
	var types []string
	for _, m := range s.SentJSON() {
		t, _ := m["type"].(string)
		types = append(types, t)
	}
	return types
}

// PongCount returns the number of liveness refreshes observed.
func (s *FakeSession) PongCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pongs
}
