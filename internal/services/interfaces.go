package services

import (
	"context"
	"time"

	"fleet-safety/internal/models"
)

// Broadcaster publishes a named event to every connected client.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// MultiBroadcaster fans each event out to several broadcasters.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) Broadcast(event string, data interface{}) {
	for _, b := range m {
		if b != nil {
			b.Broadcast(event, data)
		}
	}
}

// EmergencyListCache holds the enriched emergency list served to polling dashboards.
type EmergencyListCache interface {
	GetEmergencyList(ctx context.Context) ([]*models.EmergencyDetails, error)
	SetEmergencyList(ctx context.Context, list []*models.EmergencyDetails, ttl time.Duration) error
	InvalidateEmergencyList(ctx context.Context) error
}

// LocationRecorder queues last-known positions for persistence.
type LocationRecorder interface {
	Record(fix models.LocationFix) error
}
