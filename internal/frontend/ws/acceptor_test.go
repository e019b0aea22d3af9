package ws

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/B00147423/GuessIO/internal/config"
	"github.com/B00147423/GuessIO/internal/game/room"
	"github.com/B00147423/GuessIO/internal/gameserver"
	"github.com/B00147423/GuessIO/internal/session"
)

func startAcceptor(t *testing.T) (*Acceptor, *gameserver.Server) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	rooms := room.NewManager(clockwork.NewRealClock(), logger)
	srv := gameserver.New(rooms, session.NewRegistry(), logger)

	cfg := config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		WriteTimeout: 2 * time.Second,
		SendBuffer:   16,
	}
	a := NewAcceptor(cfg, srv, clockwork.NewRealClock(), logger)

	go func() {
		if err := a.ListenAndServe(); err != nil {
			t.Errorf("acceptor failed: %v", err)
		}
	}()
	t.Cleanup(a.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for a.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("acceptor did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return a, srv
}

func dial(t *testing.T, a *Acceptor) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+a.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestAcceptor_JoinRoundTrip(t *testing.T) {
	a, _ := startAcceptor(t)
	conn := dial(t, a)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join","room":"lobby","payload":"alice"}`)))

	ev := readEvent(t, conn)
	require.Equal(t, "join", ev["type"])
	payload := ev["payload"].(map[string]any)
	assert.Equal(t, float64(1), payload["id"])
	assert.Equal(t, "alice", payload["username"])
}

func TestAcceptor_ChatFansOutToAllClients(t *testing.T) {
	a, _ := startAcceptor(t)

	alice := dial(t, a)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join","room":"lobby","payload":"alice"}`)))
	// Drain the roster replay and self broadcast.
	readEvent(t, alice)
	readEvent(t, alice)

	bob := dial(t, a)
	require.NoError(t, bob.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join","room":"lobby","payload":"bob"}`)))
	// bob: replay of alice and bob plus its own join broadcast.
	readEvent(t, bob)
	readEvent(t, bob)
	readEvent(t, bob)
	// alice: bob's join broadcast.
	readEvent(t, alice)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"chat","room":"lobby","payload":"alice: hi"}`)))

	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn)
		assert.Equal(t, "chat", ev["type"])
		assert.Equal(t, "alice: hi", ev["payload"])
	}
}

func TestAcceptor_GetStateReply(t *testing.T) {
	a, _ := startAcceptor(t)
	conn := dial(t, a)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join","room":"lobby","payload":"alice"}`)))
	readEvent(t, conn)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"draw","room":"lobby","payload":{"x":1}}`)))
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"get_state","room":"lobby"}`)))
	ev := readEvent(t, conn)
	require.Equal(t, "current_state", ev["type"])
	payload := ev["payload"].(map[string]any)
	assert.Equal(t, []any{"alice"}, payload["players"])
	assert.Len(t, payload["strokes"], 1)
}

func TestAcceptor_DisconnectKeepsRosterForRemaining(t *testing.T) {
	a, _ := startAcceptor(t)

	alice := dial(t, a)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join","room":"lobby","payload":"alice"}`)))
	readEvent(t, alice)
	readEvent(t, alice)

	bob := dial(t, a)
	require.NoError(t, bob.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join","room":"lobby","payload":"bob"}`)))
	readEvent(t, bob)
	readEvent(t, bob)
	readEvent(t, bob)
	readEvent(t, alice)

	require.NoError(t, alice.Close())

	// alice's teardown detaches her session but leaves the roster intact
	// while bob is still connected.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, bob.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"get_state","room":"lobby"}`)))
	ev := readEvent(t, bob)
	require.Equal(t, "current_state", ev["type"])
	payload := ev["payload"].(map[string]any)
	assert.ElementsMatch(t, []any{"alice", "bob"}, payload["players"])
}

func TestAcceptor_Healthz(t *testing.T) {
	a, _ := startAcceptor(t)

	resp, err := http.Get("http://" + a.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAcceptor_StopUnblocksClients(t *testing.T) {
	a, _ := startAcceptor(t)
	conn := dial(t, a)

	stopDone := make(chan struct{})
	go func() {
		a.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return with a connected client")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "the server side closed the connection")
}
