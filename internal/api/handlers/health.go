package handlers

import (
	"context"
	"net/http"
	"time"

	"fleet-safety/internal/websocket"
	"fleet-safety/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler reports backend status. A nil db or redis client means the
// backend is not configured and is left out of the verdict.
type HealthHandler struct {
	db          *mongo.Database
	redisClient *redis.Client
	wsManager   *websocket.Manager
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

func NewHealthHandler(db *mongo.Database, redisClient *redis.Client, wsManager *websocket.Manager) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
		wsManager:   wsManager,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	healthy := true

	if h.db != nil {
		status := h.checkMongoDB(c.Request.Context())
		response.Services["mongodb"] = status
		healthy = healthy && status["healthy"].(bool)
	}

	if h.redisClient != nil {
		status := h.checkRedis()
		response.Services["redis"] = status
		healthy = healthy && status["healthy"].(bool)
	}

	if h.wsManager != nil {
		response.Services["websocket"] = h.wsManager.GetClientStats()
	}

	if healthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
		return
	}
	response.Status = "unhealthy"
	c.JSON(http.StatusServiceUnavailable, response)
}

func (h *HealthHandler) checkMongoDB(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "mongodb",
		"healthy": false,
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.db.Client().Ping(ctx, nil); err != nil {
		status["error"] = err.Error()
		return status
	}
	status["healthy"] = true
	status["message"] = "Connected"
	return status
}

func (h *HealthHandler) checkRedis() map[string]interface{} {
	health := h.redisClient.HealthCheck()

	status := map[string]interface{}{
		"service":         "redis",
		"healthy":         health.IsConnected,
		"connectionInfo":  health.ConnectionInfo,
		"responseTime":    health.ResponseTime.String(),
		"lastPing":        health.LastPing,
		"connectionStats": h.redisClient.GetConnectionStats(),
	}
	if health.Error != "" {
		status["error"] = health.Error
	}
	return status
}
