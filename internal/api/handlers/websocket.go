package handlers

import (
	"log"
	"net/http"

	"fleet-safety/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebSocketHandler upgrades dashboard and device connections. Every client
// receives every event.
type WebSocketHandler struct {
	manager *websocket.Manager
}

func NewWebSocketHandler(manager *websocket.Manager) *WebSocketHandler {
	return &WebSocketHandler{manager: manager}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.manager.GetUpgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.NewString()
	if err := h.manager.RegisterClient(clientID, conn); err != nil {
		log.Printf("WebSocket client %s rejected: %v", clientID, err)
	}
}

func (h *WebSocketHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.GetClientStats())
}
