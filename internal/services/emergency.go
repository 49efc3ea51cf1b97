package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"fleet-safety/internal/models"
	"fleet-safety/internal/repository"
	"fleet-safety/pkg/geo"
	"fleet-safety/pkg/notify"
)

const (
	DefaultDedupWindow  = 5 * time.Minute
	acknowledgedMessage = "Emergency acknowledged by manager"
)

type EmergencyService struct {
	emergencies repository.EmergencyStore
	drivers     repository.DriverStore
	vehicles    repository.VehicleStore
	broadcaster Broadcaster
	dispatcher  notify.Dispatcher
	resolver    geo.Resolver
	dedupWindow time.Duration
	now         func() time.Time

	listCache    EmergencyListCache
	listCacheTTL time.Duration
	// bumped on every write; a list read during a write is not cached
	listGen atomic.Uint64
}

func NewEmergencyService(
	emergencies repository.EmergencyStore,
	drivers repository.DriverStore,
	vehicles repository.VehicleStore,
	broadcaster Broadcaster,
	dispatcher notify.Dispatcher,
	resolver geo.Resolver,
) *EmergencyService {
	return &EmergencyService{
		emergencies: emergencies,
		drivers:     drivers,
		vehicles:    vehicles,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		resolver:    resolver,
		dedupWindow: DefaultDedupWindow,
		now:         time.Now,
	}
}

func (s *EmergencyService) SetDedupWindow(window time.Duration) {
	if window > 0 {
		s.dedupWindow = window
	}
}

func (s *EmergencyService) SetClock(now func() time.Time) {
	s.now = now
}

// SetListCache enables caching of the polled emergency list.
func (s *EmergencyService) SetListCache(cache EmergencyListCache, ttl time.Duration) {
	s.listCache = cache
	s.listCacheTTL = ttl
}

type TriggerRequest struct {
	DriverNumber  string   `json:"driverNumber"`
	VehicleNumber string   `json:"vehicleNumber"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	VideoRef      string   `json:"videoRef"`
}

// Trigger raises an emergency for a driver/vehicle pair. A repeat within the
// dedup window returns the ACTIVE record already on file and emits nothing.
func (s *EmergencyService) Trigger(ctx context.Context, req *TriggerRequest) (*models.TriggerResult, error) {
	driverNumber := strings.TrimSpace(req.DriverNumber)
	vehicleNumber := strings.TrimSpace(req.VehicleNumber)
	if driverNumber == "" {
		return nil, invalid("driverNumber", "is required")
	}
	if vehicleNumber == "" {
		return nil, invalid("vehicleNumber", "is required")
	}

	now := s.now()

	existing, err := s.emergencies.FindLatestActive(ctx, driverNumber, vehicleNumber)
	switch {
	case err == nil && now.Sub(existing.CreatedAt) < s.dedupWindow:
		log.Printf("Emergency %s replayed for driver=%s vehicle=%s", existing.ID.Hex(), driverNumber, vehicleNumber)
		return &models.TriggerResult{
			Emergency:        existing,
			Deduplicated:     true,
			NearbyFacilities: s.resolver.Nearby(existing.Latitude, existing.Longitude),
		}, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to check active emergencies: %w", err)
	}

	if req.Latitude == nil || req.Longitude == nil {
		return nil, invalid("location", "latitude and longitude are required")
	}
	lat, lng := *req.Latitude, *req.Longitude
	if !geo.ValidCoordinate(lat, lng) {
		return nil, invalid("location", "latitude and longitude must be valid coordinates")
	}

	driver, err := s.drivers.FindByNumber(ctx, driverNumber)
	if err != nil {
		return nil, lookupErr(err, "driver", driverNumber)
	}
	vehicle, err := s.vehicles.FindByNumber(ctx, vehicleNumber)
	if err != nil {
		return nil, lookupErr(err, "vehicle", vehicleNumber)
	}

	emergency, err := s.emergencies.Create(ctx, &models.Emergency{
		DriverNumber:  driverNumber,
		VehicleNumber: vehicleNumber,
		Latitude:      lat,
		Longitude:     lng,
		Timestamp:     now,
		VideoRef:      req.VideoRef,
		Status:        models.EmergencyStatusActive,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist emergency: %w", err)
	}
	log.Printf("Emergency %s raised: driver=%s vehicle=%s at %.6f,%.6f", emergency.ID.Hex(), driverNumber, vehicleNumber, lat, lng)

	facilities := s.resolver.Nearby(lat, lng)
	s.invalidateList(ctx)

	s.broadcast(models.EventReceiveEmergency, models.EmergencyBroadcast{
		Emergency:        emergency,
		Driver:           driver,
		Vehicle:          vehicle,
		NearbyFacilities: facilities,
	})

	s.alertResponders(ctx, emergency, driver)

	return &models.TriggerResult{
		Emergency:        emergency,
		NearbyFacilities: facilities,
	}, nil
}

// alertResponders texts the police and hospital contacts. Failures are logged only.
func (s *EmergencyService) alertResponders(ctx context.Context, emergency *models.Emergency, driver *models.Driver) {
	if s.dispatcher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	message := notify.EmergencyAlertMessage(driver.Name, emergency.DriverNumber, emergency.VehicleNumber,
		emergency.Latitude, emergency.Longitude, emergency.Timestamp)

	for _, phone := range []string{s.resolver.PolicePhone, s.resolver.HospitalPhone} {
		if phone == "" {
			continue
		}
		res := s.dispatcher.Send(ctx, phone, message)
		if !res.Success {
			log.Printf("Emergency %s: %v", emergency.ID.Hex(), &DispatchFailure{Phone: phone, Reason: res.Error})
			continue
		}
		log.Printf("Emergency %s: alert sent to %s (%s)", emergency.ID.Hex(), phone, res.ID)
	}
}

// Acknowledge marks the emergency ACKNOWLEDGED, cascades to every other ACTIVE
// emergency for the same pair and tells all clients to stop alarming.
func (s *EmergencyService) Acknowledge(ctx context.Context, emergencyID string) (*models.Emergency, error) {
	if strings.TrimSpace(emergencyID) == "" {
		return nil, invalid("emergencyId", "is required")
	}

	if _, err := s.emergencies.FindByID(ctx, emergencyID); err != nil {
		return nil, lookupErr(err, "emergency", emergencyID)
	}

	now := s.now()
	emergency, err := s.emergencies.Acknowledge(ctx, emergencyID, now)
	if err != nil {
		return nil, lookupErr(err, "emergency", emergencyID)
	}

	cascaded, err := s.emergencies.AcknowledgeActiveForPair(ctx, emergency.DriverNumber, emergency.VehicleNumber, now)
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge duplicate emergencies: %w", err)
	}
	if cascaded > 0 {
		log.Printf("Emergency %s: cascaded acknowledgement to %d duplicate(s)", emergencyID, cascaded)
	}

	s.invalidateList(ctx)

	s.broadcast(models.EventStopAlarm, models.StopAlarm{
		EmergencyID:   emergencyID,
		DriverNumber:  emergency.DriverNumber,
		VehicleNumber: emergency.VehicleNumber,
	})
	s.broadcast(models.EventReceiveAcknowledgement, models.Acknowledgement{
		EmergencyID: emergencyID,
		Message:     acknowledgedMessage,
		Emergency:   emergency,
	})

	log.Printf("Emergency %s acknowledged", emergencyID)
	return emergency, nil
}

func (s *EmergencyService) GetEmergency(ctx context.Context, emergencyID string) (*models.Emergency, error) {
	emergency, err := s.emergencies.FindByID(ctx, emergencyID)
	if err != nil {
		return nil, lookupErr(err, "emergency", emergencyID)
	}
	return emergency, nil
}

// ListEmergencies returns every emergency, newest first, with driver and vehicle details.
func (s *EmergencyService) ListEmergencies(ctx context.Context) ([]*models.EmergencyDetails, error) {
	if s.listCache != nil {
		if cached, err := s.listCache.GetEmergencyList(ctx); err == nil {
			return cached, nil
		}
	}

	gen := s.listGen.Load()
	emergencies, err := s.emergencies.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	drivers := make(map[string]*models.Driver)
	vehicles := make(map[string]*models.Vehicle)
	list := make([]*models.EmergencyDetails, 0, len(emergencies))
	for _, e := range emergencies {
		details := &models.EmergencyDetails{Emergency: e}

		if d, ok := drivers[e.DriverNumber]; ok {
			details.Driver = d
		} else if d, err := s.drivers.FindByNumber(ctx, e.DriverNumber); err == nil {
			drivers[e.DriverNumber] = d
			details.Driver = d
		}

		if v, ok := vehicles[e.VehicleNumber]; ok {
			details.Vehicle = v
		} else if v, err := s.vehicles.FindByNumber(ctx, e.VehicleNumber); err == nil {
			vehicles[e.VehicleNumber] = v
			details.Vehicle = v
		}

		list = append(list, details)
	}

	// Other instances' writes are only bounded by the TTL.
	if s.listCache != nil && s.listGen.Load() == gen {
		if err := s.listCache.SetEmergencyList(ctx, list, s.listCacheTTL); err != nil {
			log.Printf("Failed to cache emergency list: %v", err)
		}
	}
	return list, nil
}

func (s *EmergencyService) NearbyFacilities(lat, lng float64) ([]models.NearbyFacility, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return nil, invalid("location", "latitude and longitude must be valid coordinates")
	}
	return s.resolver.Nearby(lat, lng), nil
}

func (s *EmergencyService) broadcast(event string, data interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event, data)
	}
}

func (s *EmergencyService) invalidateList(ctx context.Context) {
	if s.listCache == nil {
		return
	}
	s.listGen.Add(1)
	if err := s.listCache.InvalidateEmergencyList(ctx); err != nil {
		log.Printf("Failed to invalidate emergency list cache: %v", err)
	}
}
