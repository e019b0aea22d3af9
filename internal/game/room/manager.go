package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/B00147423/GuessIO/internal/protocol"
	"github.com/B00147423/GuessIO/internal/session"
)

// roomExpiry is the inactivity threshold for the expired-room sweep. Sweeps
// run opportunistically on join, so a quiet room can exceed the threshold
// before being reaped; that staleness bound is accepted.
const roomExpiry = time.Hour

// Bridge is the chat-bridge surface the manager delegates bot lifecycle and
// channel routing to.
type Bridge interface {
	// SpawnBot starts a bridge client for channel. Returns false when a
	// client for that channel already exists.
	SpawnBot(oauth, nick, channel string) bool
	// StopBot tears down the client for channel. Unknown channels are a no-op.
	StopBot(channel string)
	// SetCurrentRoom binds a marker-prefixed channel to an internal room.
	SetCurrentRoom(channel, roomName string)
}

// Broadcaster fans a raw message out to every connected session
// process-wide, independent of room membership.
type Broadcaster interface {
	Broadcast(data []byte)
}

// Manager owns the room map, the room-to-channel affiliations, and the
// dispatch of inbound typed events to room operations. The manager mutex
// guards only the maps; room internals are guarded by each room's own lock,
// and no send happens under either.
type Manager struct {
	clock    clockwork.Clock
	logger   *zap.Logger
	bridge   Bridge
	everyone Broadcaster

	mu           sync.Mutex
	rooms        map[string]*Room
	roomChannels map[string]string
}

// NewManager creates a Manager with no rooms.
//
// Precondition: clock and logger must be non-nil.
func NewManager(clock clockwork.Clock, logger *zap.Logger) *Manager {
	return &Manager{
		clock:        clock,
		logger:       logger,
		rooms:        make(map[string]*Room),
		roomChannels: make(map[string]string),
	}
}

// SetBridge wires the chat-bridge layer. Called once at startup; a nil
// bridge disables spawn_bot, stop_bot, and channel routing.
func (m *Manager) SetBridge(b Bridge) {
	m.bridge = b
}

// SetBroadcaster wires the process-wide fan-out used by status events.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.everyone = b
}

// OnMessage parses and dispatches one inbound message. s is nil for
// bridge-derived synthetic events, which therefore can never receive a
// direct reply. Malformed messages are logged and dropped.
func (m *Manager) OnMessage(s session.Session, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		m.logger.Error("dropping malformed message",
			zap.Error(err),
			zap.ByteString("raw", raw),
		)
		return
	}

	roomID := protocol.NormalizeRoom(env.Room)

	switch env.Type {
	case protocol.TypeJoin:
		m.handleJoin(s, env, roomID)
	case protocol.TypeLeave:
		m.handleLeave(s, roomID)
	case protocol.TypeChat:
		m.handleChat(env, roomID)
	case protocol.TypeEndRound:
		m.handleEndRound(roomID)
	case protocol.TypeStopBot:
		m.handleStopBot(env)
	case protocol.TypeSpawnBot:
		m.handleSpawnBot(env)
	case protocol.TypeStatus:
		m.handleStatus(raw)
	case protocol.TypePong:
		if s != nil {
			s.MarkPongReceived()
		}
	case protocol.TypeDraw:
		m.handleDraw(env, roomID)
	case protocol.TypeClear:
		m.handleClear(roomID)
	case protocol.TypeGetState:
		m.handleGetState(s, roomID)
	default:
		m.logger.Warn("unknown message type",
			zap.String("type", env.Type),
			zap.ByteString("raw", raw),
		)
	}
}

// handleJoin runs both cleanup sweeps, resolves or creates the room,
// records a new room's channel affiliation, and performs a first-time join
// or a reconnect replay.
func (m *Manager) handleJoin(s session.Session, env protocol.Envelope, roomID string) {
	m.sweepAbandoned()
	m.sweepExpired()

	username := env.Username()
	if username == "" {
		return
	}

	m.mu.Lock()
	rm, ok := m.rooms[roomID]
	isNewRoom := !ok
	if isNewRoom {
		rm = New(roomID, m.clock)
		m.rooms[roomID] = rm
		if env.Channel != "" {
			m.roomChannels[roomID] = env.Channel
		}
	}
	m.mu.Unlock()

	if isNewRoom {
		m.logger.Info("creating room", zap.String("room", roomID))
		if env.Channel != "" {
			m.logger.Info("room bound to channel",
				zap.String("room", roomID),
				zap.String("channel", env.Channel),
			)
			if m.bridge != nil {
				m.bridge.SetCurrentRoom("#"+env.Channel, roomID)
			}
		} else {
			m.logger.Warn("no channel specified for new room",
				zap.String("room", roomID),
			)
		}
	}

	if rm.HasPlayer(username) {
		// Reconnect: attach the session, then replay roster and history
		// explicitly. Join already replays, but the reconnect path can race
		// with the default replay, so the double replay stays.
		m.logger.Debug("duplicate join, replaying state",
			zap.String("room", roomID),
			zap.String("username", username),
		)
		if s != nil {
			rm.Join(s, username)
			rm.ReplayPlayers(s)
			rm.ReplayHistory(s)
		}
		return
	}

	rm.Join(s, username)
}

// handleLeave detaches the session. When the removal empties the session
// set it broadcasts a leave event per known player, and an empty room is
// erased immediately, separately from the periodic sweeps.
func (m *Manager) handleLeave(s session.Session, roomID string) {
	m.mu.Lock()
	rm, ok := m.rooms[roomID]
	m.mu.Unlock()
	if !ok {
		return
	}

	if rm.Leave(s) {
		for _, p := range rm.Players() {
			rm.Broadcast(protocol.LeaveEvent(p.ID, p.Username))
		}
	}

	if rm.Empty() {
		m.logger.Info("room empty, removing", zap.String("room", roomID))
		m.mu.Lock()
		delete(m.rooms, roomID)
		m.mu.Unlock()
	}
}

// handleChat relays a chat payload to the room. Pure relay, no persistence.
func (m *Manager) handleChat(env protocol.Envelope, roomID string) {
	payload := env.PayloadString()
	if roomID == "" || payload == "" {
		return
	}
	m.room(roomID).Broadcast(protocol.ChatEvent(roomID, payload))
}

func (m *Manager) handleEndRound(roomID string) {
	m.mu.Lock()
	rm, ok := m.rooms[roomID]
	m.mu.Unlock()
	if ok {
		rm.EndRound()
	}
}

// handleDraw appends the wrapped stroke to history before broadcasting it,
// so a racing get_state sees either the old or the new history, never a
// broadcast without the persisted stroke.
func (m *Manager) handleDraw(env protocol.Envelope, roomID string) {
	if roomID == "" {
		return
	}

	drawMsg := protocol.DrawEvent(roomID, env.Payload)
	rm := m.room(roomID)
	rm.AddStroke(drawMsg)
	rm.Broadcast(drawMsg)
}

func (m *Manager) handleClear(roomID string) {
	if roomID == "" {
		return
	}

	rm := m.room(roomID)
	rm.ClearHistory()
	rm.Broadcast(protocol.ClearEvent(roomID))
}

// handleGetState snapshots the roster and history and replies to the
// requesting session only.
func (m *Manager) handleGetState(s session.Session, roomID string) {
	if roomID == "" || s == nil {
		return
	}

	m.mu.Lock()
	rm, ok := m.rooms[roomID]
	m.mu.Unlock()
	if !ok {
		m.logger.Debug("get_state for unknown room", zap.String("room", roomID))
		return
	}

	players := rm.PlayerUsernames()
	strokes := rm.StrokeHistory()
	_ = s.Send(protocol.CurrentStateEvent(players, strokes))
	m.logger.Debug("sent current state",
		zap.String("room", roomID),
		zap.Int("players", len(players)),
		zap.Int("strokes", len(strokes)),
	)
}

func (m *Manager) handleSpawnBot(env protocol.Envelope) {
	if m.bridge == nil {
		return
	}

	if m.bridge.SpawnBot(env.OAuth, env.Nick, env.Channel) {
		m.logger.Info("spawned bridge bot", zap.String("channel", env.Channel))
	} else {
		m.logger.Info("bridge bot already exists, ignoring spawn",
			zap.String("channel", env.Channel),
		)
	}
}

func (m *Manager) handleStopBot(env protocol.Envelope) {
	if m.bridge == nil {
		return
	}
	m.bridge.StopBot(env.Channel)
	m.logger.Info("stopped bridge bot", zap.String("channel", env.Channel))
}

// handleStatus rebroadcasts the raw envelope to every connected session
// process-wide, not room-scoped.
func (m *Manager) handleStatus(raw []byte) {
	if m.everyone != nil {
		m.everyone.Broadcast(raw)
	}
}

// LeaveAll detaches a disconnecting session from every room. A newly
// emptied room gets a system notice and a lobby reset; erasure is left to
// the sweeps and the explicit leave path.
func (m *Manager) LeaveAll(s session.Session) {
	m.mu.Lock()
	rooms := make(map[string]*Room, len(m.rooms))
	for id, rm := range m.rooms {
		rooms[id] = rm
	}
	m.mu.Unlock()

	for id, rm := range rooms {
		if rm.Leave(s) {
			rm.Broadcast(protocol.SystemEvent(id, "Streamer disconnected, lobby cleared"))
			rm.ResetLobby()
		}
	}
}

// room returns the room for roomID, creating it lazily on first reference.
// Rooms created this way carry no channel affiliation.
func (m *Manager) room(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.rooms[roomID]
	if !ok {
		rm = New(roomID, m.clock)
		m.rooms[roomID] = rm
	}
	return rm
}

// Rooms returns the current room identifiers.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids
}

// ChannelFor returns the channel affiliation recorded for roomID.
func (m *Manager) ChannelFor(roomID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.roomChannels[roomID]
	return ch, ok
}

// sweepAbandoned removes every room whose session set is empty, regardless
// of roster or history.
func (m *Manager) sweepAbandoned() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rm := range m.rooms {
		if rm.Empty() {
			m.logger.Info("cleaning up abandoned room", zap.String("room", id))
			delete(m.rooms, id)
		}
	}
}

// sweepExpired removes every room inactive for longer than roomExpiry and
// erases its channel affiliation. Only join and stroke operations count as
// activity.
func (m *Manager) sweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for id, rm := range m.rooms {
		idle := now.Sub(rm.LastActivity())
		if idle > roomExpiry {
			m.logger.Info("cleaning up expired room",
				zap.String("room", id),
				zap.Duration("inactive", idle),
			)
			delete(m.roomChannels, id)
			delete(m.rooms, id)
		}
	}
}
