package gameserver

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/B00147423/GuessIO/internal/game/room"
	"github.com/B00147423/GuessIO/internal/session"
	"github.com/B00147423/GuessIO/internal/testutil"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	rooms := room.NewManager(clockwork.NewFakeClock(), zaptest.NewLogger(t))
	return New(rooms, session.NewRegistry(), zaptest.NewLogger(t))
}

func TestServer_RegisterAndBroadcast(t *testing.T) {
	srv := newServer(t)

	s1 := testutil.NewFakeSession()
	s2 := testutil.NewFakeSession()
	srv.Register(s1)
	srv.Register(s2)

	srv.Broadcast([]byte(`{"type":"system","payload":"server shutting down"}`))

	assert.Equal(t, []string{"system"}, s1.SentTypes())
	assert.Equal(t, []string{"system"}, s2.SentTypes())
}

func TestServer_StatusEventsReachEveryConnection(t *testing.T) {
	srv := newServer(t)

	inRoom := testutil.NewFakeSession()
	outside := testutil.NewFakeSession()
	srv.Register(inRoom)
	srv.Register(outside)
	srv.OnClientMessage(inRoom, []byte(`{"type":"join","room":"lobby","payload":"alice"}`))

	raw := []byte(`{"type":"status","status":"ok","message":"Bot connected to Twitch IRC","channel":"#stream"}`)
	srv.OnClientMessage(nil, raw)

	// The registry fan-out ignores room membership.
	assert.Contains(t, outside.SentTypes(), "status")
	assert.Contains(t, inRoom.SentTypes(), "status")
}

func TestServer_Unregister_ClearsLobbies(t *testing.T) {
	srv := newServer(t)

	streamer := testutil.NewFakeSession()
	viewer := testutil.NewFakeSession()
	srv.Register(streamer)
	srv.Register(viewer)
	srv.OnClientMessage(streamer, []byte(`{"type":"join","room":"lobby","payload":"alice"}`))
	srv.OnClientMessage(viewer, []byte(`{"type":"join","room":"lobby","payload":"bob"}`))

	srv.Unregister(streamer)

	// The remaining session keeps the lobby alive.
	srv.OnClientMessage(viewer, []byte(`{"type":"get_state","room":"lobby"}`))
	msgs := viewer.SentJSON()
	last := msgs[len(msgs)-1]
	require.Equal(t, "current_state", last["type"])

	srv.Unregister(viewer)
}

func TestServer_SyntheticEventsDispatchWithoutSession(t *testing.T) {
	srv := newServer(t)

	viewer := testutil.NewFakeSession()
	srv.Register(viewer)
	srv.OnClientMessage(viewer, []byte(`{"type":"join","room":"lobby","payload":"alice"}`))

	srv.OnClientMessage(nil, []byte(`{"type":"chat","room":"lobby","payload":"Bob guessed: cat"}`))

	msgs := viewer.SentJSON()
	last := msgs[len(msgs)-1]
	assert.Equal(t, "chat", last["type"])
	assert.Equal(t, "Bob guessed: cat", last["payload"])
}
