// Package room owns the shared room state for the session server: per-room
// player rosters, connected-session sets, stroke history, and the manager
// that routes typed JSON events to room operations.
//
// Locking discipline: every mutating operation is exclusive under a single
// room-scoped mutex, and the mutex is never held across a send. Handlers
// copy out what they need, release the lock, then perform fan-out I/O.
package room

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/B00147423/GuessIO/internal/protocol"
	"github.com/B00147423/GuessIO/internal/session"
)

// Player is one registered participant in a room. Players are created on
// first join by username and only removed in bulk by ResetLobby; identity
// persists across session reconnects.
type Player struct {
	ID       int
	Username string
	Score    int
}

// Room owns one room's roster, session set, stroke history, and activity
// timestamp. Sessions are tracked by handle; the room never owns a
// connection's lifetime.
type Room struct {
	name  string
	clock clockwork.Clock

	mu           sync.Mutex
	players      map[string]*Player
	sessions     map[uuid.UUID]session.Session
	strokes      []json.RawMessage
	lastActivity time.Time
	nextPlayerID int
}

// New creates an empty room.
//
// Precondition: clock must be non-nil.
// Postcondition: The room has no players or sessions, ids start at 1, and
// the activity timestamp is initialized to now.
func New(name string, clock clockwork.Clock) *Room {
	return &Room{
		name:         name,
		clock:        clock,
		players:      make(map[string]*Player),
		sessions:     make(map[uuid.UUID]session.Session),
		nextPlayerID: 1,
		lastActivity: clock.Now(),
	}
}

// Name returns the room identifier.
func (r *Room) Name() string {
	return r.name
}

// Join registers username on first join, attaches the session if non-nil,
// and bumps the activity timestamp, all under one critical section. The
// new-player broadcast and the roster/history replay to the joining session
// happen after the lock is released.
func (r *Room) Join(s session.Session, username string) {
	var joinMsg []byte

	r.mu.Lock()
	if _, known := r.players[username]; !known {
		p := &Player{ID: r.nextPlayerID, Username: username}
		r.nextPlayerID++
		r.players[username] = p
		joinMsg = protocol.JoinEvent(p.ID, p.Username)
	}
	if s != nil {
		r.sessions[s.ID()] = s
	}
	r.lastActivity = r.clock.Now()
	r.mu.Unlock()

	// Replay to the joining session before announcing the new player, so a
	// late joiner always sees the existing roster ahead of its own join
	// rippling back.
	if s != nil {
		r.ReplayPlayers(s)
		r.ReplayHistory(s)
	}
	if joinMsg != nil {
		r.Broadcast(joinMsg)
	}
}

// Leave detaches the session and reports whether the session set is now
// empty. The player roster is untouched; a later session may re-attach
// under the same username.
func (r *Room) Leave(s session.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s != nil {
		delete(r.sessions, s.ID())
	}
	return len(r.sessions) == 0
}

// ResetLobby clears the roster and restarts id allocation. Sessions and
// stroke history are untouched.
func (r *Room) ResetLobby() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = make(map[string]*Player)
	r.nextPlayerID = 1
}

// Broadcast fans msg out to every tracked session. Best-effort: a failed
// individual send never aborts the remaining fan-out.
func (r *Room) Broadcast(msg []byte) {
	r.mu.Lock()
	targets := make([]session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	for _, s := range targets {
		_ = s.Send(msg)
	}
}

// EndRound broadcasts the fixed round_end notification.
func (r *Room) EndRound() {
	r.Broadcast(protocol.RoundEndEvent())
}

// AddStroke appends a stroke to the history and bumps the activity
// timestamp. The stroke is stored as the full wrapped draw event so replay
// can resend it verbatim.
func (r *Room) AddStroke(stroke json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strokes = append(r.strokes, stroke)
	r.lastActivity = r.clock.Now()
}

// ClearHistory wipes the stroke log. Clearing is not activity for the
// purposes of expiry.
func (r *Room) ClearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strokes = nil
}

// ReplayPlayers sends one join event per registered player to s. The roster
// is copied out before any send; replay order follows map iteration.
func (r *Room) ReplayPlayers(s session.Session) {
	if s == nil {
		return
	}

	r.mu.Lock()
	refs := make([]protocol.PlayerRef, 0, len(r.players))
	for _, p := range r.players {
		refs = append(refs, protocol.PlayerRef{ID: p.ID, Username: p.Username})
	}
	r.mu.Unlock()

	for _, ref := range refs {
		_ = s.Send(protocol.JoinEvent(ref.ID, ref.Username))
	}
}

// ReplayHistory sends the full stroke history to s, in append order.
func (r *Room) ReplayHistory(s session.Session) {
	if s == nil {
		return
	}

	r.mu.Lock()
	strokes := make([]json.RawMessage, len(r.strokes))
	copy(strokes, r.strokes)
	r.mu.Unlock()

	for _, stroke := range strokes {
		_ = s.Send(stroke)
	}
}

// HasPlayer reports whether username is registered in the room.
func (r *Room) HasPlayer(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[username]
	return ok
}

// PlayerUsernames returns a copy of the registered usernames.
func (r *Room) PlayerUsernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.players))
	for name := range r.players {
		names = append(names, name)
	}
	return names
}

// Players returns a copy of the roster.
func (r *Room) Players() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, *p)
	}
	return players
}

// StrokeHistory returns a copy of the stroke log.
func (r *Room) StrokeHistory() []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	strokes := make([]json.RawMessage, len(r.strokes))
	copy(strokes, r.strokes)
	return strokes
}

// Empty reports whether no sessions are attached, independent of roster size.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions) == 0
}

// LastActivity returns the time of the most recent activity-updating
// operation (join or stroke).
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}
