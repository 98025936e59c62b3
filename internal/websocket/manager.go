package websocket

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer     = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	staleAfter     = 90 * time.Second
	healthInterval = 30 * time.Second
)

var ErrManagerStopped = errors.New("websocket manager stopped")

// Manager is the realtime hub. Connections join named rooms at registration and
// BroadcastToRoom fans an event out to every connection in a room.
type Manager struct {
	clients  map[string]*Client
	rooms    map[string]map[string]*Client
	register chan *Client
	mutex    sync.RWMutex
	upgrader websocket.Upgrader
	logger   *zap.Logger

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	stopped  bool
}

// NewManager creates a new WebSocket manager. allowedOrigins empty or "*"
// accepts every origin.
func NewManager(logger *zap.Logger, allowedOrigins ...string) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		register: make(chan *Client),
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		done:   make(chan struct{}),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Start begins the WebSocket manager's main loop
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()
	m.logger.Info("websocket manager started")
}

// Stop closes every connection and waits for all client goroutines to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)

		m.mutex.Lock()
		m.stopped = true
		for _, client := range m.clients {
			m.removeLocked(client)
		}
		m.mutex.Unlock()

		m.wg.Wait()
		m.logger.Info("websocket manager stopped")
	})
}

func (m *Manager) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-m.register:
			m.add(client)
		case <-ticker.C:
			m.healthCheck(time.Now())
		case <-m.done:
			return
		}
	}
}

// RegisterClient hands a connection to the hub, which owns it from then on.
func (m *Manager) RegisterClient(client *Client) error {
	select {
	case m.register <- client:
		return nil
	case <-m.done:
		return ErrManagerStopped
	}
}

func (m *Manager) add(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.stopped {
		if client.Conn != nil {
			_ = client.Conn.Close()
		}
		return
	}

	m.clients[client.ID] = client
	for _, room := range client.Rooms {
		if m.rooms[room] == nil {
			m.rooms[room] = make(map[string]*Client)
		}
		m.rooms[room][client.ID] = client
	}
	client.Send <- Message{
		Type:      MessageTypeConnected,
		Data:      map[string]interface{}{"clientId": client.ID, "rooms": client.Rooms},
		Timestamp: time.Now(),
	}

	m.wg.Add(2)
	go m.readMessages(client)
	go m.writeMessages(client)

	m.logger.Debug("client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Strings("rooms", client.Rooms))
}

// UnregisterClient disconnects a client; unknown ids are ignored.
func (m *Manager) UnregisterClient(clientID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if client, ok := m.clients[clientID]; ok {
		m.removeLocked(client)
	}
}

// removeLocked must hold the write lock. Closing Send under the lock keeps it
// from racing a broadcast.
func (m *Manager) removeLocked(client *Client) {
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	delete(m.clients, client.ID)
	for _, room := range client.Rooms {
		delete(m.rooms[room], client.ID)
		if len(m.rooms[room]) == 0 {
			delete(m.rooms, room)
		}
	}
	close(client.Send)
	if client.Conn != nil {
		_ = client.Conn.Close()
	}
	m.logger.Debug("client unregistered", zap.String("client_id", client.ID))
}

// BroadcastToRoom queues event for every connection in room and returns how
// many accepted it. A connection with a full buffer is skipped and marked inactive.
func (m *Manager) BroadcastToRoom(room, event string, payload interface{}) int {
	msg := Message{Type: MessageTypeEvent, Event: event, Data: payload, Timestamp: time.Now()}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	delivered := 0
	for _, client := range m.rooms[room] {
		select {
		case client.Send <- msg:
			delivered++
		default:
			client.inactive.Store(true)
			m.logger.Warn("client send buffer full, dropping event",
				zap.String("client_id", client.ID),
				zap.String("event", event))
		}
	}
	return delivered
}

// GetConnectedClients returns the number of connected clients
func (m *Manager) GetConnectedClients() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

func (m *Manager) RoomSize(room string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms[room])
}

func (m *Manager) GetClientStats() ClientStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := ClientStats{
		TotalClients: len(m.clients),
		Rooms:        make(map[string]int, len(m.rooms)),
	}
	for _, client := range m.clients {
		if client.IsActive() {
			stats.ActiveClients++
		} else {
			stats.InactiveClients++
		}
	}
	for room, members := range m.rooms {
		stats.Rooms[room] = len(members)
	}
	return stats
}

// GetUpgrader returns the WebSocket upgrader for external use
func (m *Manager) GetUpgrader() *websocket.Upgrader {
	return &m.upgrader
}

// readMessages answers pings and keeps the read deadline moving. Any read
// error ends the connection.
func (m *Manager) readMessages(client *Client) {
	defer m.wg.Done()
	defer m.UnregisterClient(client.ID)

	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.touch(time.Now())
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var incoming Message
		if err := client.Conn.ReadJSON(&incoming); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Debug("websocket read error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		client.touch(time.Now())
		_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))

		if incoming.Type == MessageTypePing {
			m.reply(client, Message{Type: MessageTypePong, Timestamp: time.Now()})
		}
	}
}

func (m *Manager) reply(client *Client, msg Message) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	select {
	case client.Send <- msg:
	default:
	}
}

func (m *Manager) writeMessages(client *Client) {
	defer m.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				m.logger.Debug("websocket write failed", zap.String("client_id", client.ID), zap.Error(err))
				m.UnregisterClient(client.ID)
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.UnregisterClient(client.ID)
				return
			}
		}
	}
}

// healthCheck drops clients that have not answered a ping within staleAfter.
func (m *Manager) healthCheck(now time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, client := range m.clients {
		if now.Sub(client.LastPing()) > staleAfter {
			m.logger.Info("websocket client timed out", zap.String("client_id", id))
			m.removeLocked(client)
		}
	}
}
