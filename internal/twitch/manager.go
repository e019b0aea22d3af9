package twitch

import (
	"sync"

	"go.uber.org/zap"
)

// Manager owns the mapping from external channel to its bridge client: one
// active client per channel, spawned and stopped explicitly.
// All methods are safe for concurrent use.
type Manager struct {
	addr     string
	dispatch Dispatcher
	logger   *zap.Logger

	mu   sync.Mutex
	bots map[string]*Client
}

// NewManager creates a Manager with no clients. addr overrides the IRC
// endpoint; empty means DefaultAddr.
//
// Precondition: dispatch and logger must be non-nil.
func NewManager(addr string, dispatch Dispatcher, logger *zap.Logger) *Manager {
	return &Manager{
		addr:     addr,
		dispatch: dispatch,
		logger:   logger,
		bots:     make(map[string]*Client),
	}
}

// SpawnBot starts a bridge client for channel. When a client for that
// channel already exists the call is a no-op reporting false, and the
// existing client's connection is left undisturbed. The connect attempt
// happens outside the manager lock; a connect failure is logged by the
// client and does not unregister it.
func (m *Manager) SpawnBot(oauth, nick, channel string) bool {
	key := markChannel(channel)

	m.mu.Lock()
	if _, exists := m.bots[key]; exists {
		m.mu.Unlock()
		return false
	}
	client := NewClient(m.addr, oauth, nick, key, m.dispatch, m.logger)
	m.bots[key] = client
	m.mu.Unlock()

	_ = client.Connect()
	return true
}

// StopBot tears down the client for channel and removes it. An absent
// channel is a silent no-op.
func (m *Manager) StopBot(channel string) {
	key := markChannel(channel)

	m.mu.Lock()
	client, ok := m.bots[key]
	delete(m.bots, key)
	m.mu.Unlock()

	if ok {
		client.Disconnect()
	}
}

// SetCurrentRoom routes a channel's future derived events to roomName.
// channel is expected in marker-prefixed form; unknown channels are a no-op.
func (m *Manager) SetCurrentRoom(channel, roomName string) {
	m.mu.Lock()
	client, ok := m.bots[channel]
	m.mu.Unlock()

	if ok {
		client.SetCurrentRoom(channel, roomName)
	}
}

// Bots returns the marker-prefixed channels with an active client.
func (m *Manager) Bots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	channels := make([]string, 0, len(m.bots))
	for ch := range m.bots {
		channels = append(channels, ch)
	}
	return channels
}

// StopAll disconnects and removes every client. Used at shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.bots))
	for _, c := range m.bots {
		clients = append(clients, c)
	}
	m.bots = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.Disconnect()
	}
}
