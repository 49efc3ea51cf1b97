package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"fleet-safety/internal/models"
	"fleet-safety/internal/repository/memory"
	"fleet-safety/pkg/notify"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type broadcastEvent struct {
	Name string
	Data interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *recordingBroadcaster) Broadcast(event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{Name: event, Data: data})
}

func (b *recordingBroadcaster) named(name string) []broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcastEvent
	for _, e := range b.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type sentMessage struct {
	Phone   string
	Message string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (d *recordingDispatcher) Send(_ context.Context, phone, message string) notify.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{Phone: phone, Message: message})
	if d.fail {
		return notify.Result{Success: false, Error: "gateway unavailable"}
	}
	return notify.Result{Success: true, ID: "msg"}
}

func (d *recordingDispatcher) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentMessage(nil), d.sent...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedIssuer struct {
	username, password string
}

func (f fixedIssuer) Issue() (string, string, error) {
	return f.username, f.password, nil
}

func seedFleet(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	for _, d := range []models.Driver{
		{DriverNumber: "DRV-1", Name: "Asha Rao", Phone: "+91 98765 43210"},
		{DriverNumber: "DRV-2", Name: "Ben Ito", Phone: "9123456780"},
	} {
		d := d
		_, err := store.Drivers.Create(ctx, &d)
		require.NoError(t, err)
	}
	for _, v := range []models.Vehicle{
		{VehicleNumber: "VEH-1", Type: "truck"},
		{VehicleNumber: "VEH-2", Type: "van"},
	} {
		v := v
		_, err := store.Vehicles.Create(ctx, &v)
		require.NoError(t, err)
	}
}

func newTestTripService(store *memory.Store, dispatcher notify.Dispatcher) *TripService {
	svc := NewTripService(store.Trips, store.Drivers, store.Vehicles, dispatcher, "https://fleet.test/")
	svc.SetHashCost(bcrypt.MinCost)
	return svc
}

func ptr(f float64) *float64 {
	return &f
}
