package routes

import (
	"fleet-safety/internal/api/handlers"
	"fleet-safety/internal/api/middleware"
	"fleet-safety/internal/config"
	"fleet-safety/internal/models"
	"fleet-safety/internal/repository"
	"fleet-safety/internal/repository/memory"
	"fleet-safety/internal/services"
	"fleet-safety/internal/websocket"
	"fleet-safety/pkg/geo"
	"fleet-safety/pkg/jwt"
	"fleet-safety/pkg/notify"
	"fleet-safety/pkg/ratelimit"
	"fleet-safety/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stores is the persistence layer the services run on.
type Stores struct {
	Drivers     repository.DriverStore
	Vehicles    repository.VehicleStore
	Trips       repository.TripStore
	Emergencies repository.EmergencyStore
	Managers    repository.ManagerStore
}

func MongoStores(db *mongo.Database) Stores {
	return Stores{
		Drivers:     repository.NewDriverRepository(db),
		Vehicles:    repository.NewVehicleRepository(db),
		Trips:       repository.NewTripRepository(db),
		Emergencies: repository.NewEmergencyRepository(db),
		Managers:    repository.NewManagerRepository(db),
	}
}

func MemoryStores(store *memory.Store) Stores {
	return Stores{
		Drivers:     store.Drivers,
		Vehicles:    store.Vehicles,
		Trips:       store.Trips,
		Emergencies: store.Emergencies,
		Managers:    store.Managers,
	}
}

// Dependencies carries everything built in main. Optional members may be nil.
type Dependencies struct {
	Config     *config.Config
	Stores     Stores
	Dispatcher notify.Dispatcher
	WebSocket  *websocket.Manager

	// Extra event sinks next to the websocket hub, e.g. the Kafka publisher.
	Broadcasters []services.Broadcaster
	ListCache    services.EmergencyListCache
	Locations    services.LocationRecorder
	RateLimiter  ratelimit.RateLimiter

	DB    *mongo.Database
	Redis *redis.Client
}

type Services struct {
	Auth        *services.AuthService
	Trips       *services.TripService
	Emergencies *services.EmergencyService
	Fleet       *services.FleetService
	Locations   *services.LocationService
}

func SetupRoutes(router *gin.Engine, deps Dependencies) *Services {
	cfg := deps.Config

	broadcaster := services.MultiBroadcaster{deps.WebSocket}
	broadcaster = append(broadcaster, deps.Broadcasters...)

	// Initialize services
	jwtUtil := jwt.NewJWTUtil(cfg.JWTSecret, cfg.JWTExpiry)
	authService := services.NewAuthService(deps.Stores.Managers, jwtUtil)
	tripService := services.NewTripService(deps.Stores.Trips, deps.Stores.Drivers, deps.Stores.Vehicles, deps.Dispatcher, cfg.PublicBaseURL)
	fleetService := services.NewFleetService(deps.Stores.Drivers, deps.Stores.Vehicles)

	emergencyService := services.NewEmergencyService(
		deps.Stores.Emergencies,
		deps.Stores.Drivers,
		deps.Stores.Vehicles,
		broadcaster,
		deps.Dispatcher,
		geo.Resolver{
			PolicePhone:   cfg.Emergency.PolicePhone,
			HospitalPhone: cfg.Emergency.HospitalPhone,
			RadiusKm:      cfg.Emergency.FacilityRadiusKm,
		},
	)
	emergencyService.SetDedupWindow(cfg.Emergency.DedupWindow)
	if deps.ListCache != nil {
		emergencyService.SetListCache(deps.ListCache, cfg.Emergency.ListCacheTTL)
	}

	locationService := services.NewLocationService(broadcaster)
	if deps.Locations != nil {
		locationService.SetRecorder(deps.Locations)
	}
	deps.WebSocket.Handle(models.EventLocationUpdate, locationService.HandleLocationUpdate)
	deps.WebSocket.Refuse(models.EventEmergencyTriggered, "emergencies are raised with POST /api/v1/emergencies")
	deps.WebSocket.Refuse(models.EventAlarmStop, "alarms stop when an emergency is acknowledged")
	deps.WebSocket.Refuse(models.EventAcknowledgementSent, "acknowledge with POST /api/v1/emergencies/:id/acknowledge")

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	tripHandler := handlers.NewTripHandler(tripService)
	emergencyHandler := handlers.NewEmergencyHandler(emergencyService, cfg.UploadDir)
	fleetHandler := handlers.NewFleetHandler(fleetService)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis, deps.WebSocket)
	wsHandler := handlers.NewWebSocketHandler(deps.WebSocket)

	if cfg.UploadDir != "" {
		router.Static("/uploads", cfg.UploadDir)
	}
	router.GET("/ws", wsHandler.HandleWebSocket)

	// API routes
	api := router.Group("/api/v1")
	if deps.RateLimiter != nil {
		// the panic trigger is never throttled; dedup absorbs device retries
		api.Use(middleware.RateLimitMiddleware(deps.RateLimiter, "POST /api/v1/emergencies"))
	}

	api.GET("/health", healthHandler.HealthCheck)
	api.GET("/ws/stats", wsHandler.GetStats)

	// Public routes
	auth := api.Group("/auth")
	{
		auth.POST("/manager/login", authHandler.Login)
		auth.POST("/driver/login", tripHandler.DriverLogin)
		auth.POST("/refresh", authHandler.RefreshToken)
	}
	api.GET("/trips/current", tripHandler.CurrentTrip)

	// Device routes
	api.POST("/emergencies", middleware.DeviceAuth(tripService), emergencyHandler.Trigger)

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		protected.GET("/auth/profile", authHandler.GetProfile)

		emergencies := protected.Group("/emergencies")
		{
			emergencies.GET("", emergencyHandler.GetEmergencies)
			emergencies.GET("/facilities", emergencyHandler.GetFacilities)
			emergencies.GET("/:id", emergencyHandler.GetEmergency)
			emergencies.POST("/:id/acknowledge",
				middleware.RequireRole(models.RoleManager, models.RolePolice, models.RoleHospital),
				emergencyHandler.Acknowledge)
		}

		managers := protected.Group("/")
		managers.Use(middleware.RequireRole(models.RoleManager))
		{
			managers.POST("/auth/register", authHandler.Register)

			trips := managers.Group("/trips")
			{
				trips.POST("", tripHandler.AssignTrip)
				trips.GET("", tripHandler.GetTrips)
				trips.GET("/:id", tripHandler.GetTrip)
				trips.POST("/:id/complete", tripHandler.CompleteTrip)
				trips.POST("/:id/cancel", tripHandler.CancelTrip)
			}

			drivers := managers.Group("/drivers")
			{
				drivers.POST("", fleetHandler.CreateDriver)
				drivers.GET("", fleetHandler.GetDrivers)
				drivers.GET("/:driverNumber", fleetHandler.GetDriver)
				drivers.PATCH("/:driverNumber", fleetHandler.UpdateDriver)
			}

			vehicles := managers.Group("/vehicles")
			{
				vehicles.POST("", fleetHandler.CreateVehicle)
				vehicles.GET("", fleetHandler.GetVehicles)
				vehicles.GET("/:vehicleNumber", fleetHandler.GetVehicle)
				vehicles.PATCH("/:vehicleNumber", fleetHandler.UpdateVehicle)
			}
		}
	}

	return &Services{
		Auth:        authService,
		Trips:       tripService,
		Emergencies: emergencyService,
		Fleet:       fleetService,
		Locations:   locationService,
	}
}
