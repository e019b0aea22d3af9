// Package ws accepts inbound WebSocket connections and adapts each one to
// the session contract: a reader loop feeding the dispatch boundary and a
// writer goroutine draining the session outbox, so per-connection delivery
// is in-order and never interleaved.
package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/B00147423/GuessIO/internal/config"
	"github.com/B00147423/GuessIO/internal/session"
)

// Gateway is the dispatch boundary the acceptor feeds.
type Gateway interface {
	OnClientMessage(sess session.Session, raw []byte)
	Register(sess session.Session)
	Unregister(sess session.Session)
}

// Acceptor listens for WebSocket connections and runs one session per
// connection until Stop is called.
type Acceptor struct {
	cfg     config.ServerConfig
	gateway Gateway
	clock   clockwork.Clock
	logger  *zap.Logger

	upgrader websocket.Upgrader
	server   *http.Server

	mu       sync.Mutex
	listener net.Listener
	conns    map[*websocket.Conn]struct{}
	running  bool
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewAcceptor creates a WebSocket acceptor with the given configuration.
//
// Precondition: gateway, clock, and logger must be non-nil.
func NewAcceptor(cfg config.ServerConfig, gateway Gateway, clock clockwork.Clock, logger *zap.Logger) *Acceptor {
	a := &Acceptor{
		cfg:     cfg,
		gateway: gateway,
		clock:   clock,
		logger:  logger,
		conns:   make(map[*websocket.Conn]struct{}),
		quit:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The game frontend is served from a separate origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	a.server = &http.Server{Handler: mux}
	return a
}

// ListenAndServe starts the listener and blocks until Stop is called.
//
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
	)

	if err := a.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving websocket connections: %w", err)
	}
	return nil
}

// handleWS upgrades one HTTP request and runs its session to completion.
func (a *Acceptor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	a.wg.Add(1)
	go a.runSession(conn, r.RemoteAddr)
}

// runSession owns the connection's full lifetime: registration, writer
// pump, ping ticker, reader loop, and teardown.
func (a *Acceptor) runSession(conn *websocket.Conn, addr string) {
	defer a.wg.Done()
	start := time.Now()

	a.mu.Lock()
	a.conns[conn] = struct{}{}
	a.mu.Unlock()

	rec := session.NewRecord(a.cfg.SendBuffer, a.clock)
	a.gateway.Register(rec)

	a.logger.Info("client connected",
		zap.String("remote_addr", addr),
		zap.String("session", rec.ID().String()),
	)

	done := make(chan struct{})

	// Writer pump: drains the outbox until the record is closed.
	go func() {
		for data := range rec.Outbox() {
			if a.cfg.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	// Liveness: transport-level pings refresh the same marker the JSON
	// pong message does.
	conn.SetPongHandler(func(string) error {
		rec.MarkPongReceived()
		return nil
	})
	if a.cfg.PingInterval > 0 {
		go func() {
			ticker := time.NewTicker(a.cfg.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					deadline := time.Now().Add(a.cfg.WriteTimeout)
					if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
						return
					}
				case <-done:
					return
				case <-a.quit:
					return
				}
			}
		}()
	}

	// Reader loop: each frame goes through the dispatch boundary.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		a.gateway.OnClientMessage(rec, data)
	}

	close(done)
	a.gateway.Unregister(rec)
	_ = rec.Close()
	_ = conn.Close()

	a.mu.Lock()
	delete(a.conns, conn)
	a.mu.Unlock()

	a.logger.Info("client disconnected",
		zap.String("remote_addr", addr),
		zap.String("session", rec.ID().String()),
		zap.Duration("duration", time.Since(start)),
	)
}

// Stop gracefully stops the acceptor: the listener closes, in-flight
// sessions are drained, and the method returns once all have finished.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.quit)
	for conn := range a.conns {
		_ = conn.Close()
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.server.Shutdown(ctx)

	a.wg.Wait()
	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or "" before ListenAndServe.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}
