package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleet-safety/internal/api/routes"
	"fleet-safety/internal/config"
	"fleet-safety/internal/models"
	"fleet-safety/internal/repository/memory"
	"fleet-safety/internal/services"
	"fleet-safety/internal/websocket"
	"fleet-safety/pkg/batch"
	"fleet-safety/pkg/cache"
	"fleet-safety/pkg/notify"
	"fleet-safety/pkg/ratelimit"
	"fleet-safety/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	phones []string
}

func (d *recordingDispatcher) Send(_ context.Context, phone, _ string) notify.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.phones = append(d.phones, phone)
	return notify.Result{Success: true, ID: "sim"}
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.phones)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type system struct {
	server     *httptest.Server
	store      *memory.Store
	dispatcher *recordingDispatcher
	processor  *batch.LocationProcessor
	token      string
}

func startSystem(t *testing.T) *system {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(config.RedisConfig{Host: mr.Host(), Port: mr.Port()})
	t.Cleanup(func() { redisClient.Close() })

	cfg := &config.Config{
		JWTSecret:     "integration-secret",
		JWTExpiry:     "1h",
		PublicBaseURL: "https://fleet.test",
		UploadDir:     t.TempDir(),
		Emergency: config.EmergencyConfig{
			PolicePhone:      "+100",
			HospitalPhone:    "+200",
			DedupWindow:      5 * time.Minute,
			FacilityRadiusKm: 10,
			ListCacheTTL:     time.Minute,
		},
	}

	store := memory.NewStore()
	sys := &system{store: store, dispatcher: &recordingDispatcher{}}

	processor, err := batch.NewLocationProcessor(batch.BatchConfig{
		MaxBatchSize:  10,
		BatchInterval: time.Hour,
		QueueSize:     100,
		RetryAttempts: 1,
		RetryBackoff:  time.Millisecond,
	}, store.Vehicles)
	require.NoError(t, err)
	require.NoError(t, processor.Start())
	t.Cleanup(func() { processor.Stop() })
	sys.processor = processor

	wsManager := websocket.NewManager()
	require.NoError(t, wsManager.Start())
	t.Cleanup(func() { wsManager.Stop() })

	router := gin.New()
	svc := routes.SetupRoutes(router, routes.Dependencies{
		Config:      cfg,
		Stores:      routes.MemoryStores(store),
		Dispatcher:  sys.dispatcher,
		WebSocket:   wsManager,
		ListCache:   cache.NewRedisCache(redisClient, cache.DefaultCacheConfig()),
		Locations:   processor,
		RateLimiter: ratelimit.NewRedisRateLimiter(redisClient.GetClient(), ratelimit.DefaultConfig()),
		Redis:       redisClient,
	})

	require.NoError(t, svc.Auth.EnsureManager(context.Background(), &services.RegisterManagerRequest{
		Username: "dispatch",
		Name:     "Dispatch Desk",
		Password: "correct-horse",
		Role:     models.RoleManager,
	}))

	sys.server = httptest.NewServer(router)
	t.Cleanup(sys.server.Close)

	var login services.LoginResponse
	resp := sys.call(t, http.MethodPost, "/api/v1/auth/manager/login", map[string]string{
		"username": "dispatch",
		"password": "correct-horse",
	}, nil, http.StatusOK)
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	require.NotEmpty(t, login.Token)
	sys.token = login.Token

	return sys
}

// call sends a JSON request; auth is applied to the request before sending.
func (s *system) call(t *testing.T, method, path string, body interface{}, auth func(*http.Request), wantStatus int) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != nil {
		auth(req)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Equal(t, wantStatus, res.StatusCode, out.Message)
	return out
}

func (s *system) asManager(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.token)
}

func asDevice(creds models.TripCredentials) func(*http.Request) {
	return func(req *http.Request) {
		req.SetBasicAuth(creds.TemporaryUsername, creds.TemporaryPassword)
	}
}

func (s *system) dial(t *testing.T) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	frame := readFrame(t, conn)
	require.Equal(t, websocket.MessageTypeConnected, frame.Event)
	return conn
}

func readFrame(t *testing.T, conn *gorillaws.Conn) websocket.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func (s *system) seedFleet(t *testing.T) models.TripCredentials {
	t.Helper()
	s.call(t, http.MethodPost, "/api/v1/drivers", map[string]string{
		"driverNumber": "DRV-7",
		"name":         "Asha Rao",
		"phone":        "+15550007",
	}, s.asManager, http.StatusCreated)
	s.call(t, http.MethodPost, "/api/v1/vehicles", map[string]interface{}{
		"vehicleNumber": "VEH-7",
		"type":          "truck",
	}, s.asManager, http.StatusCreated)

	resp := s.call(t, http.MethodPost, "/api/v1/trips", map[string]string{
		"driverNumber":  "DRV-7",
		"vehicleNumber": "VEH-7",
	}, s.asManager, http.StatusCreated)

	var assignment models.TripAssignment
	require.NoError(t, json.Unmarshal(resp.Data, &assignment))
	return assignment.Credentials
}

func (s *system) listEmergencies(t *testing.T) []models.EmergencyDetails {
	t.Helper()
	resp := s.call(t, http.MethodGet, "/api/v1/emergencies", nil, s.asManager, http.StatusOK)
	var list []models.EmergencyDetails
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	return list
}

// TestEmergencyLifecycle drives a trip from assignment through a duplicated
// panic trigger to acknowledgement, watching the dashboard socket throughout.
func TestEmergencyLifecycle(t *testing.T) {
	sys := startSystem(t)
	dashboard := sys.dial(t)
	board := models.NewEmergencyBoard()

	creds := sys.seedFleet(t)
	assert.Equal(t, 1, sys.dispatcher.count())

	// device panic button
	resp := sys.call(t, http.MethodPost, "/api/v1/emergencies", map[string]interface{}{
		"latitude":  12.34,
		"longitude": 56.78,
	}, asDevice(creds), http.StatusCreated)

	var raised models.TriggerResult
	require.NoError(t, json.Unmarshal(resp.Data, &raised))
	require.NotNil(t, raised.Emergency)
	assert.Equal(t, "DRV-7", raised.Emergency.DriverNumber)
	assert.Equal(t, models.EmergencyStatusActive, raised.Emergency.Status)
	assert.Equal(t, 3, sys.dispatcher.count())

	frame := readFrame(t, dashboard)
	require.Equal(t, models.EventReceiveEmergency, frame.Event)
	var pushed models.EmergencyBroadcast
	require.NoError(t, json.Unmarshal(frame.Data, &pushed))
	require.NotNil(t, pushed.Emergency)
	require.NotNil(t, pushed.Driver)
	assert.Equal(t, "Asha Rao", pushed.Driver.Name)
	assert.NotEmpty(t, pushed.NearbyFacilities)
	board.ApplyEmergency(*pushed.Emergency)

	// a retry from the device is absorbed
	resp = sys.call(t, http.MethodPost, "/api/v1/emergencies", map[string]interface{}{
		"latitude":  12.34,
		"longitude": 56.78,
	}, asDevice(creds), http.StatusOK)
	var replay models.TriggerResult
	require.NoError(t, json.Unmarshal(resp.Data, &replay))
	assert.True(t, replay.Deduplicated)
	assert.Equal(t, raised.Emergency.ID, replay.Emergency.ID)
	assert.Equal(t, 3, sys.dispatcher.count())

	list := sys.listEmergencies(t)
	require.Len(t, list, 1)
	assert.Equal(t, models.EmergencyStatusActive, list[0].Status)

	// polling snapshot and push agree
	snapshot := make([]models.Emergency, 0, len(list))
	for _, d := range list {
		snapshot = append(snapshot, *d.Emergency)
	}
	board.ApplySnapshot(snapshot)
	assert.Len(t, board.Active(), 1)

	sys.call(t, http.MethodPost, "/api/v1/emergencies/"+raised.Emergency.ID.Hex()+"/acknowledge", nil, sys.asManager, http.StatusOK)

	frame = readFrame(t, dashboard)
	require.Equal(t, models.EventStopAlarm, frame.Event)
	var stop models.StopAlarm
	require.NoError(t, json.Unmarshal(frame.Data, &stop))
	assert.Equal(t, raised.Emergency.ID.Hex(), stop.EmergencyID)
	board.ApplyStopAlarm(stop)

	frame = readFrame(t, dashboard)
	require.Equal(t, models.EventReceiveAcknowledgement, frame.Event)
	var ack models.Acknowledgement
	require.NoError(t, json.Unmarshal(frame.Data, &ack))
	board.ApplyAcknowledgement(ack)

	assert.Empty(t, board.Active())

	// the cached list was invalidated by the acknowledgement
	list = sys.listEmergencies(t)
	require.Len(t, list, 1)
	assert.Equal(t, models.EmergencyStatusAcknowledged, list[0].Status)

	// a stale snapshot cannot revive the alarm on the board
	board.ApplySnapshot(snapshot)
	assert.Empty(t, board.Active())

	// after acknowledgement a new press raises a fresh emergency
	sys.call(t, http.MethodPost, "/api/v1/emergencies", map[string]interface{}{
		"latitude":  12.4,
		"longitude": 56.8,
	}, asDevice(creds), http.StatusCreated)
	assert.Len(t, sys.listEmergencies(t), 2)
}

func TestEmergencyRoutes_RequireAuth(t *testing.T) {
	sys := startSystem(t)
	creds := sys.seedFleet(t)

	sys.call(t, http.MethodGet, "/api/v1/emergencies", nil, nil, http.StatusUnauthorized)
	sys.call(t, http.MethodPost, "/api/v1/trips", map[string]string{}, nil, http.StatusUnauthorized)

	resp := sys.call(t, http.MethodGet, "/api/v1/trips/current?temporaryUsername="+creds.TemporaryUsername+"&temporaryPassword="+creds.TemporaryPassword, nil, nil, http.StatusOK)
	var trip models.Trip
	require.NoError(t, json.Unmarshal(resp.Data, &trip))
	assert.Equal(t, "VEH-7", trip.VehicleNumber)
}

func TestLocationUpdates_RelayedAndPersisted(t *testing.T) {
	sys := startSystem(t)
	sys.seedFleet(t)

	device := sys.dial(t)
	dashboard := sys.dial(t)

	require.NoError(t, device.WriteJSON(map[string]interface{}{
		"event": "LOCATION_UPDATE",
		"data": map[string]interface{}{
			"vehicleNumber": "VEH-7",
			"location":      map[string]float64{"lat": 12.5, "lng": 56.5},
		},
	}))

	frame := readFrame(t, dashboard)
	require.Equal(t, models.EventReceiveLocation, frame.Event)
	assert.JSONEq(t, `{"vehicleNumber":"VEH-7","location":{"lat":12.5,"lng":56.5}}`, string(frame.Data))

	var vehicle *models.Vehicle
	require.Eventually(t, func() bool {
		if err := sys.processor.Flush(context.Background()); err != nil {
			return false
		}
		v, err := sys.store.Vehicles.FindByNumber(context.Background(), "VEH-7")
		if err != nil || v.LastLocation == nil {
			return false
		}
		vehicle = v
		return true
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, 12.5, vehicle.LastLocation.Lat)
	assert.Equal(t, 56.5, vehicle.LastLocation.Lng)
}

func TestSocketAlarmEvents_AreNotRelayed(t *testing.T) {
	sys := startSystem(t)
	creds := sys.seedFleet(t)
	device := sys.dial(t)
	dashboard := sys.dial(t)

	sys.call(t, http.MethodPost, "/api/v1/emergencies", map[string]interface{}{
		"latitude":  12.34,
		"longitude": 56.78,
	}, asDevice(creds), http.StatusCreated)
	require.Equal(t, models.EventReceiveEmergency, readFrame(t, device).Event)
	require.Equal(t, models.EventReceiveEmergency, readFrame(t, dashboard).Event)

	for _, event := range []string{models.EventAlarmStop, models.EventAcknowledgementSent, models.EventEmergencyTriggered} {
		require.NoError(t, device.WriteJSON(map[string]interface{}{
			"event": event,
			"data":  map[string]string{"vehicleNumber": "VEH-7", "driverNumber": "DRV-7"},
		}))
		frame := readFrame(t, device)
		assert.Equal(t, websocket.MessageTypeError, frame.Event, event)
	}

	// dashboards only ever see server-raised events
	require.NoError(t, dashboard.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := dashboard.ReadMessage()
	assert.Error(t, err)

	list := sys.listEmergencies(t)
	require.Len(t, list, 1)
	assert.Equal(t, models.EmergencyStatusActive, list[0].Status)
}
