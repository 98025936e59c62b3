package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Message is the envelope written to every connection.
type Message struct {
	Type      string      `json:"type"`
	Event     string      `json:"event,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is one authenticated connection and the rooms it listens on.
type Client struct {
	ID     string
	UserID string
	Role   string
	Rooms  []string
	Conn   *websocket.Conn
	Send   chan Message

	lastPing atomic.Int64
	inactive atomic.Bool
}

func NewClient(id, userID, role string, rooms []string, conn *websocket.Conn) *Client {
	c := &Client{
		ID:     id,
		UserID: userID,
		Role:   role,
		Rooms:  rooms,
		Conn:   conn,
		Send:   make(chan Message, sendBuffer),
	}
	c.touch(time.Now())
	return c
}

func (c *Client) touch(t time.Time) {
	c.lastPing.Store(t.UnixNano())
}

func (c *Client) LastPing() time.Time {
	return time.Unix(0, c.lastPing.Load())
}

// IsActive is false once the client's send buffer has overflowed.
func (c *Client) IsActive() bool {
	return !c.inactive.Load()
}

// ClientStats provides statistics about connected clients
type ClientStats struct {
	TotalClients    int            `json:"totalClients"`
	ActiveClients   int            `json:"activeClients"`
	InactiveClients int            `json:"inactiveClients"`
	Rooms           map[string]int `json:"rooms"`
}

// Message types for WebSocket communication
const (
	MessageTypeConnected = "connected"
	MessageTypeEvent     = "event"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
)
