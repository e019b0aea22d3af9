// Package twitch implements the chat bridge: one persistent IRC connection
// per monitored channel, translating remote chat commands into the internal
// event model.
package twitch

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/B00147423/GuessIO/internal/protocol"
	"github.com/B00147423/GuessIO/internal/session"
)

// DefaultAddr is the production IRC endpoint.
const DefaultAddr = "irc.chat.twitch.tv:6667"

// Dispatcher is the single entry point bridge-derived events funnel
// through. Sessions derived from the bridge are always nil, so replies are
// necessarily broadcast-only.
type Dispatcher interface {
	OnClientMessage(s session.Session, raw []byte)
}

// Client maintains one outbound IRC connection for a channel. The read loop
// parses the line protocol incrementally and forwards derived events to the
// dispatcher. A read failure halts the loop; retry policy is the caller's
// concern.
type Client struct {
	addr    string
	oauth   string
	nick    string
	channel string // marker-prefixed, immutable for the client's lifetime

	dispatch Dispatcher
	logger   *zap.Logger

	mu           sync.Mutex
	conn         net.Conn
	channelRooms map[string]string
}

// NewClient creates a client for the given channel. The channel is
// normalized to its marker-prefixed form.
//
// Precondition: dispatch and logger must be non-nil.
func NewClient(addr, oauth, nick, channel string, dispatch Dispatcher, logger *zap.Logger) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Client{
		addr:         addr,
		oauth:        oauth,
		nick:         nick,
		channel:      markChannel(channel),
		dispatch:     dispatch,
		logger:       logger,
		channelRooms: make(map[string]string),
	}
}

// Channel returns the marker-prefixed channel this client monitors.
func (c *Client) Channel() string {
	return c.channel
}

// Connect dials the IRC endpoint, sends the login burst, and starts the
// read loop. A connect failure is terminal for this attempt: it is logged
// and returned, never retried here.
func (c *Client) Connect() error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		c.logger.Error("bridge connect failed",
			zap.String("channel", c.channel),
			zap.String("addr", c.addr),
			zap.Error(err),
		)
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.login()
	go c.readLoop(conn)
	return nil
}

// login sends the capability request, credential, nickname, and
// channel-join commands as a single burst.
func (c *Client) login() {
	c.send(capRequest)
	c.send("PASS " + c.oauth)
	c.send("NICK " + c.nick)
	c.send("JOIN " + c.channel)
}

// send writes one command line with the fixed terminator. Write errors are
// logged and otherwise ignored; the read loop surfaces a dead connection.
func (c *Client) send(msg string) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	if _, err := conn.Write([]byte(msg + lineTerminator)); err != nil {
		c.logger.Error("bridge send failed",
			zap.String("channel", c.channel),
			zap.Error(err),
		)
	}
}

// Disconnect sends a graceful PART and QUIT, ignoring their outcome, then
// closes the transport.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}

	_, _ = conn.Write([]byte("PART " + c.channel + lineTerminator))
	_, _ = conn.Write([]byte("QUIT" + lineTerminator))

	if err := conn.Close(); err != nil {
		c.logger.Error("closing bridge connection",
			zap.String("channel", c.channel),
			zap.Error(err),
		)
		return
	}
	c.logger.Info("disconnected from channel", zap.String("channel", c.channel))
}

// readLoop accumulates bytes and extracts complete lines on the fixed
// two-character terminator. Each complete line is handled before the next
// read. A read failure logs and halts the loop.
func (c *Client) readLoop(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			c.logger.Error("bridge read failed",
				zap.String("channel", c.channel),
				zap.Error(err),
			)
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		c.handleLine(line)
	}
}

// handleLine processes one complete protocol line.
func (c *Client) handleLine(line string) {
	c.logger.Debug("bridge line", zap.String("channel", c.channel), zap.String("raw", line))

	// Liveness probe: answer immediately, nothing else to do.
	if strings.HasPrefix(line, pingPrefix) {
		c.send(pongReply)
		return
	}

	// Successful login: announce bridge connectivity for this channel.
	if strings.Contains(line, loginOKToken) {
		c.logger.Info("bridge connected", zap.String("channel", c.channel))
		c.dispatch.OnClientMessage(nil, protocol.BridgeStatusEvent(c.channel))
		return
	}

	if strings.Contains(line, privmsgToken) {
		c.handleChat(chatterName(line), messageText(line))
	}
}

// handleChat interprets an extracted chat message, longest prefix first,
// and forwards the derived event with no originating session.
func (c *Client) handleChat(username, message string) {
	target := c.roomForChannel()

	switch {
	case strings.HasPrefix(message, "!join"):
		c.logger.Debug("bridge join command",
			zap.String("channel", c.channel),
			zap.String("username", username),
			zap.String("room", target),
		)
		c.dispatch.OnClientMessage(nil, protocol.SyntheticJoin(target, username))

	case strings.HasPrefix(message, "!guess "):
		guess := message[len("!guess "):]
		c.dispatch.OnClientMessage(nil, protocol.ChatEvent(target, username+" guessed: "+guess))

	default:
		c.dispatch.OnClientMessage(nil, protocol.ChatEvent(target, username+": "+message))
	}
}

// roomForChannel returns the internal room currently bound to this
// client's channel, falling back to the channel name without its marker
// when no binding exists yet.
func (c *Client) roomForChannel() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room, ok := c.channelRooms[c.channel]; ok {
		return room
	}
	return stripMarker(c.channel)
}

// SetCurrentRoom updates the channel-to-room binding used for derived
// events. Called by the room layer once per new room/channel affiliation.
func (c *Client) SetCurrentRoom(channel, roomName string) {
	c.mu.Lock()
	c.channelRooms[channel] = roomName
	c.mu.Unlock()

	c.logger.Debug("bridge room binding updated",
		zap.String("channel", channel),
		zap.String("room", roomName),
	)
}
