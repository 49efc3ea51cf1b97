package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleet-safety/internal/api/routes"
	"fleet-safety/internal/config"
	"fleet-safety/internal/models"
	"fleet-safety/internal/repository/memory"
	"fleet-safety/internal/services"
	"fleet-safety/internal/websocket"
	"fleet-safety/pkg/batch"
	"fleet-safety/pkg/cache"
	"fleet-safety/pkg/database"
	"fleet-safety/pkg/events"
	"fleet-safety/pkg/notify"
	"fleet-safety/pkg/ratelimit"
	"fleet-safety/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load configuration
	cfg := config.Load()

	deps := routes.Dependencies{
		Config:     cfg,
		Dispatcher: buildDispatcher(cfg),
		WebSocket:  websocket.NewManager(),
	}

	// Storage backend
	var db *mongo.Database
	switch cfg.StorageBackend {
	case config.StorageMemory:
		log.Printf("Using in-memory storage; data is lost on restart")
		deps.Stores = routes.MemoryStores(memory.NewStore())
	default:
		var err error
		db, err = database.Connect(cfg.MongoURI)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		defer database.Disconnect(db.Client())

		deps.DB = db
		deps.Stores = routes.MongoStores(db)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload directory %s: %v", cfg.UploadDir, err)
	}

	// Redis: cross-instance websocket relay, list cache, shared rate limits
	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(cfg.Redis)
		defer redisClient.Close()

		healthStatus := redisClient.HealthCheck()
		if healthStatus.IsConnected {
			log.Printf("Redis connected successfully at %s", healthStatus.ConnectionInfo)
		} else {
			log.Printf("Redis connection failed: %s (will retry automatically)", healthStatus.Error)
		}
		deps.Redis = redisClient

		relay := websocket.NewRedisRelay(redisClient.GetClient(), "", deps.WebSocket)
		if err := relay.Start(context.Background()); err != nil {
			log.Printf("WebSocket relay disabled: %v", err)
		} else {
			deps.WebSocket.SetRelay(relay)
			defer relay.Stop()
		}

		deps.ListCache = cache.NewRedisCache(redisClient, cache.DefaultCacheConfig())

		if cfg.RateLimitEnabled {
			deps.RateLimiter = ratelimit.NewRedisRateLimiter(redisClient.GetClient(), ratelimit.DefaultConfig())
		}
	} else if cfg.RateLimitEnabled {
		limiter := ratelimit.NewMemoryRateLimiter(ratelimit.DefaultConfig())
		defer limiter.Close()
		deps.RateLimiter = limiter
	}

	// Kafka: durable copy of every broadcast event
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewPublisher(events.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer publisher.Close()
		deps.Broadcasters = append(deps.Broadcasters, publisher)
		log.Printf("Publishing events to Kafka topic %s", cfg.Kafka.Topic)
	}

	// Last-known vehicle positions are written in batches
	processor, err := batch.NewLocationProcessor(batch.FromConfig(cfg.Batch), deps.Stores.Vehicles)
	if err != nil {
		log.Fatal("Invalid location batch config:", err)
	}
	if err := processor.Start(); err != nil {
		log.Fatal("Failed to start location processor:", err)
	}
	defer processor.Stop()
	deps.Locations = processor

	if err := deps.WebSocket.Start(); err != nil {
		log.Fatal("Failed to start WebSocket manager:", err)
	}
	defer deps.WebSocket.Stop()

	// Setup Gin router
	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	if !allowsAnyOrigin(cfg.AllowedOrigins) {
		deps.WebSocket.SetCheckOrigin(originChecker(cfg.AllowedOrigins))
	}

	// Setup routes
	svc := routes.SetupRoutes(router, deps)

	if cfg.SeedManagerUsername != "" && cfg.SeedManagerPassword != "" {
		seed := &services.RegisterManagerRequest{
			Username: cfg.SeedManagerUsername,
			Name:     "Fleet Manager",
			Password: cfg.SeedManagerPassword,
			Role:     models.RoleManager,
		}
		if err := svc.Auth.EnsureManager(context.Background(), seed); err != nil {
			log.Printf("Failed to seed manager %s: %v", cfg.SeedManagerUsername, err)
		}
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}

// buildDispatcher prefers the SMS API, falls back to the email gateway, and
// logs messages when neither is configured.
func buildDispatcher(cfg *config.Config) notify.Dispatcher {
	var chain []notify.Dispatcher
	if cfg.SMS.APIKey != "" {
		chain = append(chain, notify.NewSMSGateway(cfg.SMS.APIKey, cfg.SMS.APIURL))
	}
	if cfg.SMTP.Host != "" && cfg.SMTP.GatewayDomain != "" {
		chain = append(chain, notify.NewEmailGateway(
			cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password,
			cfg.SMTP.FromEmail, cfg.SMTP.GatewayDomain,
		))
	}

	switch len(chain) {
	case 0:
		log.Printf("No SMS provider configured; messages will only be logged")
		return notify.NewSimulator()
	case 1:
		return chain[0]
	default:
		return notify.NewFallback(chain...)
	}
}

func allowsAnyOrigin(origins []string) bool {
	return len(origins) == 1 && origins[0] == "*"
}

func corsConfig(origins []string) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Upgrade", "Connection", "Sec-WebSocket-Key", "Sec-WebSocket-Version", "Sec-WebSocket-Protocol"},
		ExposeHeaders: []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
	}

	// Handle wildcard origin for development
	if allowsAnyOrigin(origins) {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false // Cannot use credentials with AllowAllOrigins
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	return corsConfig
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// devices and CLI clients send no Origin
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
