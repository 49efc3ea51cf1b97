package websocket

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Message is the wire frame in both directions: {"event": ..., "data": ...}.
type Message struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Origin    string          `json:"origin,omitempty"`
}

// ErrorPayload is sent back to a client whose frame was not accepted.
type ErrorPayload struct {
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
}

// InboundHandler processes the data of a client-sent event.
type InboundHandler func(data json.RawMessage)

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	lastSeen atomic.Int64
	active   atomic.Bool
}

func newClient(id string, conn *websocket.Conn) *Client {
	c := &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
	}
	c.touch()
	c.active.Store(true)
	return c
}

func (c *Client) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Client) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// ClientStats provides statistics about connected clients
type ClientStats struct {
	TotalClients    int    `json:"totalClients"`
	ActiveClients   int    `json:"activeClients"`
	InactiveClients int    `json:"inactiveClients"`
	DroppedFrames   uint64 `json:"droppedFrames"`
	InstanceID      string `json:"instanceId"`
}

// Relay carries frames between server instances.
type Relay interface {
	Publish(frame []byte) error
}

var errStopped = errors.New("websocket manager stopped")

const (
	MessageTypeConnected = "CONNECTED"
	MessageTypeError     = "ERROR"
)

const (
	sendBufferSize    = 256
	broadcastBuffer   = 1000
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = 54 * time.Second
	healthCheckPeriod = 30 * time.Second
	idleTimeout       = 90 * time.Second
	maxMessageSize    = 64 * 1024
)
