package services

import (
	"encoding/json"
	"log"
	"time"

	"fleet-safety/internal/models"
	"fleet-safety/pkg/geo"
)

// LocationService relays device location updates to every client as
// RECEIVE_LOCATION, unthrottled, and queues the fix for persistence.
type LocationService struct {
	broadcaster Broadcaster
	recorder    LocationRecorder
	now         func() time.Time
}

func NewLocationService(broadcaster Broadcaster) *LocationService {
	return &LocationService{broadcaster: broadcaster, now: time.Now}
}

func (s *LocationService) SetRecorder(recorder LocationRecorder) {
	s.recorder = recorder
}

type locationUpdate struct {
	VehicleNumber string   `json:"vehicleNumber"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Location      *struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"location"`
}

// HandleLocationUpdate relays the payload verbatim.
func (s *LocationService) HandleLocationUpdate(data json.RawMessage) {
	if len(data) == 0 {
		return
	}
	s.broadcaster.Broadcast(models.EventReceiveLocation, data)

	if s.recorder == nil {
		return
	}
	fix, ok := s.parseFix(data)
	if !ok {
		return
	}
	if err := s.recorder.Record(fix); err != nil {
		log.Printf("Failed to queue location for vehicle %s: %v", fix.VehicleNumber, err)
	}
}

func (s *LocationService) parseFix(data json.RawMessage) (models.LocationFix, bool) {
	var update locationUpdate
	if err := json.Unmarshal(data, &update); err != nil || update.VehicleNumber == "" {
		return models.LocationFix{}, false
	}

	lat, lng := update.Latitude, update.Longitude
	if (lat == nil || lng == nil) && update.Location != nil {
		lat, lng = update.Location.Lat, update.Location.Lng
	}
	if lat == nil || lng == nil || !geo.ValidCoordinate(*lat, *lng) {
		return models.LocationFix{}, false
	}

	return models.LocationFix{
		VehicleNumber: update.VehicleNumber,
		Location:      models.Location{Lat: *lat, Lng: *lng},
		ReportedAt:    s.now(),
	}, true
}
