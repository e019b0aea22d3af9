// Package gameserver wires the session registry, the room layer, and the
// chat bridge behind the single dispatch entry point that both real
// sessions and bridge-derived synthetic events funnel through.
package gameserver

import (
	"go.uber.org/zap"

	"github.com/B00147423/GuessIO/internal/game/room"
	"github.com/B00147423/GuessIO/internal/session"
)

// Server is the dispatch boundary between transports and the room layer.
type Server struct {
	rooms    *room.Manager
	registry *session.Registry
	logger   *zap.Logger
}

// New creates a Server over the given room manager and registry, and wires
// the manager's process-wide broadcaster to the registry.
//
// Precondition: rooms, registry, and logger must be non-nil.
func New(rooms *room.Manager, registry *session.Registry, logger *zap.Logger) *Server {
	s := &Server{
		rooms:    rooms,
		registry: registry,
		logger:   logger,
	}
	rooms.SetBroadcaster(registry)
	return s
}

// OnClientMessage routes one inbound message into the room layer. sess is
// nil for bridge-derived events.
func (s *Server) OnClientMessage(sess session.Session, raw []byte) {
	s.rooms.OnMessage(sess, raw)
}

// Broadcast fans data out to every connected session process-wide.
func (s *Server) Broadcast(data []byte) {
	s.registry.Broadcast(data)
}

// Register tracks a newly connected session.
func (s *Server) Register(sess session.Session) {
	s.registry.Add(sess)
	s.logger.Debug("session registered",
		zap.String("session", sess.ID().String()),
		zap.Int("total", s.registry.Count()),
	)
}

// Unregister drops a disconnected session and detaches it from every room.
func (s *Server) Unregister(sess session.Session) {
	s.registry.Remove(sess.ID())
	s.rooms.LeaveAll(sess)
	s.logger.Debug("session unregistered",
		zap.String("session", sess.ID().String()),
		zap.Int("total", s.registry.Count()),
	)
}
