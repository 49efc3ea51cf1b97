package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Manager fans events out to every connected client. There are no rooms or
// filters; clients pick what they need from the payload.
type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	done       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once

	handlersMu sync.RWMutex
	handlers   map[string]InboundHandler
	refused    map[string]string

	relay      Relay
	instanceID string
	dropped    atomic.Uint64
}

// NewManager creates a new WebSocket manager
func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		handlers:   make(map[string]InboundHandler),
		refused:    make(map[string]string),
		instanceID: uuid.NewString(),
	}
}

// SetCheckOrigin restricts which origins may open a socket.
func (m *Manager) SetCheckOrigin(check func(r *http.Request) bool) {
	m.upgrader.CheckOrigin = check
}

// SetRelay mirrors every locally raised event to other instances.
func (m *Manager) SetRelay(relay Relay) {
	m.relay = relay
}

func (m *Manager) InstanceID() string {
	return m.instanceID
}

// Handle registers the handler for a client-sent event name. Names are case-insensitive.
func (m *Manager) Handle(event string, handler InboundHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers[strings.ToUpper(event)] = handler
}

// Refuse answers a client-sent event with an ERROR frame carrying reason
// instead of acting on it.
func (m *Manager) Refuse(event, reason string) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.refused[strings.ToUpper(event)] = reason
}

// Start begins the WebSocket manager's main loop
func (m *Manager) Start() error {
	go m.run()
	log.Println("WebSocket manager started")
	return nil
}

// Stop closes every client connection and ends the main loop.
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() {
		close(m.done)
		<-m.stopped

		m.mutex.Lock()
		for id, client := range m.clients {
			m.dropClient(id, client)
		}
		m.mutex.Unlock()

		log.Println("WebSocket manager stopped")
	})
	return nil
}

func (m *Manager) run() {
	defer close(m.stopped)

	ticker := time.NewTicker(healthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			m.clients[client.ID] = client
			m.mutex.Unlock()
			m.sendTo(client, encode(MessageTypeConnected, map[string]string{"clientId": client.ID}, ""))
			log.Printf("WebSocket client %s registered", client.ID)

		case client := <-m.unregister:
			m.mutex.Lock()
			if current, ok := m.clients[client.ID]; ok && current == client {
				m.dropClient(client.ID, client)
			}
			m.mutex.Unlock()
			log.Printf("WebSocket client %s unregistered", client.ID)

		case frame := <-m.broadcast:
			m.broadcastToClients(frame)

		case <-ticker.C:
			m.healthCheck(time.Now())

		case <-m.done:
			return
		}
	}
}

// dropClient must be called with m.mutex held.
func (m *Manager) dropClient(id string, client *Client) {
	delete(m.clients, id)
	close(client.Send)
	if client.Conn != nil {
		client.Conn.Close()
	}
}

// RegisterClient hands an upgraded connection to the manager and starts its pumps.
func (m *Manager) RegisterClient(clientID string, conn *websocket.Conn) error {
	client := newClient(clientID, conn)

	select {
	case m.register <- client:
	case <-m.done:
		conn.Close()
		return errStopped
	}

	go m.writeMessages(client)
	go m.readMessages(client)
	return nil
}

// UnregisterClient removes a WebSocket client
func (m *Manager) UnregisterClient(clientID string) error {
	m.mutex.RLock()
	client, exists := m.clients[clientID]
	m.mutex.RUnlock()

	if exists {
		m.requestUnregister(client)
	}
	return nil
}

func (m *Manager) requestUnregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// Broadcast sends a named event to every connected client of every instance.
func (m *Manager) Broadcast(event string, data interface{}) {
	frame := encode(event, data, m.instanceID)
	if frame == nil {
		return
	}

	m.enqueue(frame)

	if m.relay != nil {
		if err := m.relay.Publish(frame); err != nil {
			log.Printf("WebSocket relay publish failed for %s: %v", event, err)
		}
	}
}

// DeliverLocal sends a frame received from another instance to local clients only.
func (m *Manager) DeliverLocal(frame []byte) {
	m.enqueue(frame)
}

func (m *Manager) enqueue(frame []byte) {
	select {
	case m.broadcast <- frame:
	default:
		m.dropped.Add(1)
		log.Printf("WebSocket broadcast channel full, dropping frame")
	}
}

// GetConnectedClients returns the number of connected clients
func (m *Manager) GetConnectedClients() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// GetClientStats returns detailed client statistics
func (m *Manager) GetClientStats() ClientStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := ClientStats{
		TotalClients:  len(m.clients),
		DroppedFrames: m.dropped.Load(),
		InstanceID:    m.instanceID,
	}
	for _, client := range m.clients {
		if client.active.Load() {
			stats.ActiveClients++
		} else {
			stats.InactiveClients++
		}
	}
	return stats
}

// GetUpgrader returns the WebSocket upgrader for external use
func (m *Manager) GetUpgrader() *websocket.Upgrader {
	return &m.upgrader
}

func (m *Manager) broadcastToClients(frame []byte) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, client := range m.clients {
		m.sendTo(client, frame)
	}
}

// sendTo never blocks; a client with a full buffer misses the frame.
func (m *Manager) sendTo(client *Client, frame []byte) {
	select {
	case client.Send <- frame:
		client.active.Store(true)
	default:
		client.active.Store(false)
		m.dropped.Add(1)
		log.Printf("WebSocket client %s send buffer full, frame dropped", client.ID)
	}
}

func (m *Manager) readMessages(client *Client) {
	defer m.requestUnregister(client)

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.touch()
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error for client %s: %v", client.ID, err)
			}
			return
		}
		client.touch()
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var message Message
		if err := json.Unmarshal(raw, &message); err != nil || message.Event == "" {
			m.sendTo(client, encode(MessageTypeError, ErrorPayload{Error: "malformed frame"}, ""))
			continue
		}

		event := strings.ToUpper(message.Event)
		m.handlersMu.RLock()
		handler, ok := m.handlers[event]
		reason, refused := m.refused[event]
		m.handlersMu.RUnlock()
		if !ok {
			if !refused {
				reason = "unsupported event"
			}
			log.Printf("WebSocket client %s sent %q: %s", client.ID, message.Event, reason)
			m.sendTo(client, encode(MessageTypeError, ErrorPayload{Event: message.Event, Error: reason}, ""))
			continue
		}
		handler(message.Data)
	}
}

func (m *Manager) writeMessages(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("Error writing message to client %s: %v", client.ID, err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Error sending ping to client %s: %v", client.ID, err)
				return
			}
		}
	}
}

// healthCheck drops clients that have not been heard from within idleTimeout.
func (m *Manager) healthCheck(now time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, client := range m.clients {
		if now.Sub(client.LastSeen()) > idleTimeout {
			log.Printf("WebSocket client %s timed out, removing", id)
			m.dropClient(id, client)
		}
	}
}

func encode(event string, data interface{}, origin string) []byte {
	msg := Message{Event: event, Timestamp: time.Now().UTC(), Origin: origin}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			log.Printf("WebSocket failed to encode %s payload: %v", event, err)
			return nil
		}
		msg.Data = raw
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket failed to encode %s frame: %v", event, err)
		return nil
	}
	return frame
}
