package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, manager *Manager) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := manager.GetUpgrader().Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = manager.RegisterClient(r.URL.Query().Get("id"), conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeConnected, msg.Event)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestManagerStartStop(t *testing.T) {
	manager := NewManager()
	require.NoError(t, manager.Start())
	assert.NoError(t, manager.Stop())
	assert.NoError(t, manager.Stop())
}

func TestBroadcast_ReachesEveryClient(t *testing.T) {
	manager := NewManager()
	require.NoError(t, manager.Start())
	defer manager.Stop()
	server := startServer(t, manager)

	dashboard := dial(t, server, "dashboard")
	device := dial(t, server, "device")
	assert.Equal(t, 2, manager.GetConnectedClients())

	manager.Broadcast("STOP_ALARM", map[string]string{"emergencyId": "e1", "vehicleNumber": "VEH-1"})

	for _, conn := range []*websocket.Conn{dashboard, device} {
		msg := readMessage(t, conn)
		assert.Equal(t, "STOP_ALARM", msg.Event)
		assert.Equal(t, manager.InstanceID(), msg.Origin)

		var data map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, "e1", data["emergencyId"])
	}
}

func TestInboundHandler(t *testing.T) {
	manager := NewManager()
	require.NoError(t, manager.Start())
	defer manager.Stop()
	server := startServer(t, manager)

	received := make(chan json.RawMessage, 1)
	manager.Handle("LOCATION_UPDATE", func(data json.RawMessage) {
		received <- data
	})

	conn := dial(t, server, "device")
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "location_update",
		"data":  map[string]interface{}{"vehicleNumber": "VEH-1", "latitude": 1.5},
	}))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"vehicleNumber":"VEH-1","latitude":1.5}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestRefusedEvent_AnsweredWithError(t *testing.T) {
	manager := NewManager()
	require.NoError(t, manager.Start())
	defer manager.Stop()
	server := startServer(t, manager)

	manager.Refuse("EMERGENCY_TRIGGERED", "use the HTTP endpoint")

	device := dial(t, server, "device")
	dashboard := dial(t, server, "dashboard")
	require.NoError(t, device.WriteJSON(map[string]interface{}{
		"event": "emergency_triggered",
		"data":  map[string]string{"vehicleNumber": "VEH-1"},
	}))

	msg := readMessage(t, device)
	assert.Equal(t, MessageTypeError, msg.Event)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "emergency_triggered", payload.Event)
	assert.Equal(t, "use the HTTP endpoint", payload.Error)

	// nothing reaches other clients
	require.NoError(t, dashboard.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := dashboard.ReadMessage()
	assert.Error(t, err)
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	manager := NewManager()
	require.NoError(t, manager.Start())
	defer manager.Stop()
	server := startServer(t, manager)

	conn := dial(t, server, "device")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Event)
	assert.JSONEq(t, `{"error":"malformed frame"}`, string(msg.Data))

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "SELF_DESTRUCT"}))
	msg = readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Event)
	assert.JSONEq(t, `{"event":"SELF_DESTRUCT","error":"unsupported event"}`, string(msg.Data))

	// the connection stays usable
	assert.Equal(t, 1, manager.GetConnectedClients())
	manager.Broadcast("STOP_ALARM", map[string]string{"emergencyId": "e1"})
	assert.Equal(t, "STOP_ALARM", readMessage(t, conn).Event)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	manager := NewManager()
	require.NoError(t, manager.Start())
	defer manager.Stop()
	server := startServer(t, manager)

	conn := dial(t, server, "temp")
	require.Equal(t, 1, manager.GetConnectedClients())
	conn.Close()

	assert.Eventually(t, func() bool { return manager.GetConnectedClients() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestSendTo_FullBufferDropsFrame(t *testing.T) {
	manager := NewManager()
	client := newClient("slow", nil)
	for i := 0; i < sendBufferSize; i++ {
		client.Send <- []byte("x")
	}

	manager.sendTo(client, []byte("overflow"))

	assert.Len(t, client.Send, sendBufferSize)
	assert.False(t, client.active.Load())
	assert.Equal(t, uint64(1), manager.GetClientStats().DroppedFrames)
}

func TestHealthCheck_RemovesIdleClients(t *testing.T) {
	manager := NewManager()
	idle := newClient("idle", nil)
	fresh := newClient("fresh", nil)
	idle.lastSeen.Store(time.Now().Add(-2 * idleTimeout).UnixNano())
	manager.clients[idle.ID] = idle
	manager.clients[fresh.ID] = fresh

	manager.healthCheck(time.Now())

	assert.Equal(t, 1, manager.GetConnectedClients())
	_, open := <-idle.Send
	assert.False(t, open)
}

type captureRelay struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *captureRelay) Publish(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func TestBroadcast_PublishesToRelay(t *testing.T) {
	manager := NewManager()
	relay := &captureRelay{}
	manager.SetRelay(relay)

	manager.Broadcast("RECEIVE_LOCATION", json.RawMessage(`{"vehicleNumber":"VEH-1"}`))

	require.Len(t, relay.frames, 1)
	var msg Message
	require.NoError(t, json.Unmarshal(relay.frames[0], &msg))
	assert.Equal(t, "RECEIVE_LOCATION", msg.Event)
	assert.JSONEq(t, `{"vehicleNumber":"VEH-1"}`, string(msg.Data))
}
