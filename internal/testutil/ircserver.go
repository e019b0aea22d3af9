package testutil

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// IRCServer is a scripted IRC endpoint for bridge-client tests. It accepts
// connections on a loopback port, records every command line the client
// sends, and can feed protocol lines back.
type IRCServer struct {
	t        *testing.T
	listener net.Listener

	mu       sync.Mutex
	conn     net.Conn
	received []string

	connCh chan net.Conn
}

// NewIRCServer starts a server on an ephemeral loopback port.
//
// Postcondition: Returns a listening server, closed automatically at test
// cleanup.
func NewIRCServer(t *testing.T) *IRCServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	s := &IRCServer{
		t:        t,
		listener: listener,
		connCh:   make(chan net.Conn, 1),
	}
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

// Addr returns the "host:port" the server listens on.
func (s *IRCServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *IRCServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		select {
		case s.connCh <- conn:
		default:
		}

		go s.readLoop(conn)
	}
}

func (s *IRCServer) readLoop(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.received = append(s.received, line)
		s.mu.Unlock()
	}
}

// AwaitConn blocks until a client has connected or the timeout elapses.
func (s *IRCServer) AwaitConn(timeout time.Duration) {
	s.t.Helper()
	select {
	case <-s.connCh:
	case <-time.After(timeout):
		s.t.Fatalf("no client connected within %s", timeout)
	}
}

// SendLine writes one protocol line, with terminator, to the connected
// client.
//
// Precondition: a client must be connected.
func (s *IRCServer) SendLine(line string) {
	s.t.Helper()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.t.Fatal("no client connected")
	}

	if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
		s.t.Fatalf("writing %q: %v", line, err)
	}
}

// Received returns a snapshot of all command lines received so far.
func (s *IRCServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

// AwaitReceived polls until a received line contains substr, returning that
// line, or fails the test on timeout.
func (s *IRCServer) AwaitReceived(substr string, timeout time.Duration) string {
	s.t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		for _, line := range s.Received() {
			if strings.Contains(line, substr) {
				return line
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.t.Fatalf("no line containing %q received within %s; got %q", substr, timeout, s.Received())
	return ""
}

// Close shuts the listener and any connected client.
func (s *IRCServer) Close() {
	_ = s.listener.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
