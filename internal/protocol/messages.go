// Package protocol defines the JSON message envelope exchanged with connected
// clients and the constructors for every server-originated event shape.
package protocol

import (
	"encoding/json"
	"strings"
)

// Message type discriminators for the client wire protocol.
const (
	TypeJoin         = "join"
	TypeLeave        = "leave"
	TypeChat         = "chat"
	TypeDraw         = "draw"
	TypeClear        = "clear"
	TypeEndRound     = "end_round"
	TypeGetState     = "get_state"
	TypeSpawnBot     = "spawn_bot"
	TypeStopBot      = "stop_bot"
	TypeStatus       = "status"
	TypePong         = "pong"
	TypeSystem       = "system"
	TypeCurrentState = "current_state"
	TypeRoundEnd     = "round_end"
)

// Envelope is the common frame for inbound client messages. Payload is kept
// raw because its shape depends on Type (a bare string for chat, an object
// for strokes, either for join).
type Envelope struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	OAuth   string          `json:"oauth,omitempty"`
	Nick    string          `json:"nick,omitempty"`
}

// Decode parses a raw inbound message into an Envelope.
//
// Postcondition: Returns a non-nil error on malformed JSON; missing fields
// decode to zero values and are the handler's concern.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Username extracts the joining username from the payload, which may be a
// bare string or an object carrying a "username" field.
//
// Postcondition: Returns "" when the payload carries no username.
func (e Envelope) Username() string {
	if len(e.Payload) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Payload, &s); err == nil {
		return s
	}
	var obj struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(e.Payload, &obj); err == nil {
		return obj.Username
	}
	return ""
}

// PayloadString returns the payload as a plain string, or "" when the
// payload is absent or not a JSON string.
func (e Envelope) PayloadString() string {
	if len(e.Payload) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Payload, &s); err != nil {
		return ""
	}
	return s
}

// NormalizeRoom strips a single leading channel marker from a room
// identifier, producing the canonical form used for all lookups.
func NormalizeRoom(room string) string {
	if strings.HasPrefix(room, "#") {
		return room[1:]
	}
	return room
}

// PlayerRef identifies a player in join and leave events.
type PlayerRef struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

func mustMarshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// JoinEvent builds the broadcast announcing a newly registered player.
func JoinEvent(id int, username string) []byte {
	return mustMarshal(struct {
		Type    string    `json:"type"`
		Payload PlayerRef `json:"payload"`
	}{TypeJoin, PlayerRef{ID: id, Username: username}})
}

// LeaveEvent builds the broadcast announcing a departed player.
func LeaveEvent(id int, username string) []byte {
	return mustMarshal(struct {
		Type    string    `json:"type"`
		Payload PlayerRef `json:"payload"`
	}{TypeLeave, PlayerRef{ID: id, Username: username}})
}

// ChatEvent builds a room-scoped chat relay message.
func ChatEvent(room, payload string) []byte {
	return mustMarshal(struct {
		Type    string `json:"type"`
		Room    string `json:"room"`
		Payload string `json:"payload"`
	}{TypeChat, room, payload})
}

// DrawEvent wraps a stroke payload for history and broadcast. The stroke is
// opaque; nil marshals to a null payload, matching lenient client handling.
func DrawEvent(room string, stroke json.RawMessage) []byte {
	if stroke == nil {
		stroke = json.RawMessage("null")
	}
	return mustMarshal(struct {
		Type    string          `json:"type"`
		Room    string          `json:"room"`
		Payload json.RawMessage `json:"payload"`
	}{TypeDraw, room, stroke})
}

// ClearEvent builds the broadcast announcing a wiped stroke history.
func ClearEvent(room string) []byte {
	return mustMarshal(struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}{TypeClear, room})
}

// RoundEndEvent builds the fixed round_end notification.
func RoundEndEvent() []byte {
	return mustMarshal(struct {
		Type    string `json:"type"`
		Payload string `json:"payload"`
	}{TypeRoundEnd, "Round finished!"})
}

// SystemEvent builds a system notice. Room may be empty for process-wide
// notices such as the shutdown broadcast.
func SystemEvent(room, payload string) []byte {
	return mustMarshal(struct {
		Type    string `json:"type"`
		Room    string `json:"room,omitempty"`
		Payload string `json:"payload"`
	}{TypeSystem, room, payload})
}

// CurrentStatePayload is the body of a current_state reply.
type CurrentStatePayload struct {
	Players []string          `json:"players"`
	Strokes []json.RawMessage `json:"strokes"`
}

// CurrentStateEvent builds the per-session snapshot reply for get_state.
// Empty roster and history marshal as empty arrays, never null.
func CurrentStateEvent(players []string, strokes []json.RawMessage) []byte {
	if players == nil {
		players = []string{}
	}
	if strokes == nil {
		strokes = []json.RawMessage{}
	}
	return mustMarshal(struct {
		Type    string              `json:"type"`
		Payload CurrentStatePayload `json:"payload"`
	}{TypeCurrentState, CurrentStatePayload{Players: players, Strokes: strokes}})
}

// BridgeStatusEvent announces that the chat bridge for a channel completed
// its login handshake.
func BridgeStatusEvent(channel string) []byte {
	return mustMarshal(struct {
		Type    string `json:"type"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Channel string `json:"channel"`
	}{TypeStatus, "ok", "Bot connected to Twitch IRC", channel})
}

// SyntheticJoin builds the join event a bridge client derives from a remote
// !join command. The payload is the bare chatter name.
func SyntheticJoin(room, username string) []byte {
	return mustMarshal(struct {
		Type    string `json:"type"`
		Room    string `json:"room"`
		Payload string `json:"payload"`
	}{TypeJoin, room, username})
}
