// Package memory provides process-local stores used for development runs
// (STORAGE_BACKEND=memory) and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleet-safety/internal/models"
	"fleet-safety/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store bundles one in-memory repository per collection.
type Store struct {
	Drivers     *DriverRepository
	Vehicles    *VehicleRepository
	Trips       *TripRepository
	Emergencies *EmergencyRepository
	Managers    *ManagerRepository
}

func NewStore() *Store {
	return &Store{
		Drivers:     NewDriverRepository(),
		Vehicles:    NewVehicleRepository(),
		Trips:       NewTripRepository(),
		Emergencies: NewEmergencyRepository(),
		Managers:    NewManagerRepository(),
	}
}

func assignID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	return oid, nil
}

// newest picks the most recently created element; ties go to the later insert.
func newest[T any](items []*T, created func(*T) time.Time) *T {
	var best *T
	for _, item := range items {
		if best == nil || !created(item).Before(created(best)) {
			best = item
		}
	}
	return best
}

type DriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
}

func NewDriverRepository() *DriverRepository {
	return &DriverRepository{drivers: make(map[string]models.Driver)}
}

func (r *DriverRepository) Create(_ context.Context, driver *models.Driver) (*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.drivers[driver.DriverNumber]; exists {
		return nil, repository.ErrDuplicate
	}
	assignID(&driver.ID)
	r.drivers[driver.DriverNumber] = *driver
	return driver, nil
}

func (r *DriverRepository) FindByNumber(_ context.Context, driverNumber string) (*models.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[driverNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r *DriverRepository) FindAll(_ context.Context) ([]*models.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverNumber < out[j].DriverNumber })
	return out, nil
}

func (r *DriverRepository) UpdateContact(_ context.Context, driverNumber string, update models.DriverContactUpdate) (*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Name != nil {
		d.Name = *update.Name
	}
	if update.Phone != nil {
		d.Phone = *update.Phone
	}
	d.UpdatedAt = time.Now()
	r.drivers[driverNumber] = d
	return &d, nil
}

type VehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]models.Vehicle
}

func NewVehicleRepository() *VehicleRepository {
	return &VehicleRepository{vehicles: make(map[string]models.Vehicle)}
}

func (r *VehicleRepository) Create(_ context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.vehicles[vehicle.VehicleNumber]; exists {
		return nil, repository.ErrDuplicate
	}
	assignID(&vehicle.ID)
	r.vehicles[vehicle.VehicleNumber] = *vehicle
	return vehicle, nil
}

func (r *VehicleRepository) FindByNumber(_ context.Context, vehicleNumber string) (*models.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[vehicleNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (r *VehicleRepository) FindAll(_ context.Context) ([]*models.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		v := v
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleNumber < out[j].VehicleNumber })
	return out, nil
}

func (r *VehicleRepository) UpdateTelemetry(_ context.Context, vehicleNumber string, update models.VehicleTelemetryUpdate) (*models.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[vehicleNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.CurrentFuel != nil {
		v.CurrentFuel = *update.CurrentFuel
	}
	if update.CurrentMileage != nil {
		v.CurrentMileage = *update.CurrentMileage
	}
	v.UpdatedAt = time.Now()
	r.vehicles[vehicleNumber] = v
	return &v, nil
}

func (r *VehicleRepository) UpdateLastLocation(_ context.Context, fix models.LocationFix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyFix(fix)
	return nil
}

func (r *VehicleRepository) UpdateLastLocations(_ context.Context, fixes map[string]models.LocationFix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fix := range fixes {
		r.applyFix(fix)
	}
	return nil
}

func (r *VehicleRepository) applyFix(fix models.LocationFix) {
	v, ok := r.vehicles[fix.VehicleNumber]
	if !ok {
		return
	}
	if v.LastLocationAt != nil && v.LastLocationAt.After(fix.ReportedAt) {
		return
	}
	loc := fix.Location
	at := fix.ReportedAt
	v.LastLocation = &loc
	v.LastLocationAt = &at
	r.vehicles[fix.VehicleNumber] = v
}

type TripRepository struct {
	mu    sync.RWMutex
	trips []*models.Trip
}

func NewTripRepository() *TripRepository {
	return &TripRepository{}
}

func (r *TripRepository) Create(_ context.Context, trip *models.Trip) (*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trips {
		if t.TemporaryUsername == trip.TemporaryUsername {
			return nil, repository.ErrDuplicate
		}
	}
	assignID(&trip.ID)
	stored := *trip
	r.trips = append(r.trips, &stored)
	return trip, nil
}

func (r *TripRepository) find(match func(*models.Trip) bool) *models.Trip {
	var matched []*models.Trip
	for _, t := range r.trips {
		if match(t) {
			matched = append(matched, t)
		}
	}
	best := newest(matched, func(t *models.Trip) time.Time { return t.CreatedAt })
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

func (r *TripRepository) findOne(match func(*models.Trip) bool) (*models.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t := r.find(match); t != nil {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func (r *TripRepository) FindByID(_ context.Context, id string) (*models.Trip, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(func(t *models.Trip) bool { return t.ID == oid })
}

func (r *TripRepository) FindActiveByDriver(_ context.Context, driverNumber string) (*models.Trip, error) {
	return r.findOne(func(t *models.Trip) bool { return t.DriverNumber == driverNumber && t.IsActive() })
}

func (r *TripRepository) FindActiveByVehicle(_ context.Context, vehicleNumber string) (*models.Trip, error) {
	return r.findOne(func(t *models.Trip) bool { return t.VehicleNumber == vehicleNumber && t.IsActive() })
}

func (r *TripRepository) FindByUsername(_ context.Context, username string) (*models.Trip, error) {
	return r.findOne(func(t *models.Trip) bool { return t.TemporaryUsername == username })
}

func (r *TripRepository) FindAll(_ context.Context) ([]*models.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Trip, 0, len(r.trips))
	for i := len(r.trips) - 1; i >= 0; i-- {
		cp := *r.trips[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *TripRepository) Complete(_ context.Context, id string, at time.Time) (*models.Trip, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trips {
		if t.ID != oid {
			continue
		}
		if t.IsActive() {
			completed := at
			t.Status = models.TripStatusCompleted
			t.CompletedAt = &completed
		}
		cp := *t
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

type EmergencyRepository struct {
	mu          sync.RWMutex
	emergencies []*models.Emergency
}

func NewEmergencyRepository() *EmergencyRepository {
	return &EmergencyRepository{}
}

func (r *EmergencyRepository) Create(_ context.Context, emergency *models.Emergency) (*models.Emergency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&emergency.ID)
	stored := *emergency
	r.emergencies = append(r.emergencies, &stored)
	return emergency, nil
}

func (r *EmergencyRepository) FindByID(_ context.Context, id string) (*models.Emergency, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.emergencies {
		if e.ID == oid {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func activeFor(e *models.Emergency, driverNumber, vehicleNumber string) bool {
	return e.IsActive() && e.DriverNumber == driverNumber && e.VehicleNumber == vehicleNumber
}

func (r *EmergencyRepository) FindLatestActive(_ context.Context, driverNumber, vehicleNumber string) (*models.Emergency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*models.Emergency
	for _, e := range r.emergencies {
		if activeFor(e, driverNumber, vehicleNumber) {
			matched = append(matched, e)
		}
	}
	best := newest(matched, func(e *models.Emergency) time.Time { return e.CreatedAt })
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *EmergencyRepository) FindAll(_ context.Context) ([]*models.Emergency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Emergency, 0, len(r.emergencies))
	for i := len(r.emergencies) - 1; i >= 0; i-- {
		cp := *r.emergencies[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func acknowledge(e *models.Emergency, at time.Time) {
	acked := at
	e.Status = models.EmergencyStatusAcknowledged
	e.AcknowledgedAt = &acked
}

func (r *EmergencyRepository) Acknowledge(_ context.Context, id string, at time.Time) (*models.Emergency, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.emergencies {
		if e.ID != oid {
			continue
		}
		if e.IsActive() {
			acknowledge(e, at)
		}
		cp := *e
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *EmergencyRepository) AcknowledgeActiveForPair(_ context.Context, driverNumber, vehicleNumber string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.emergencies {
		if activeFor(e, driverNumber, vehicleNumber) {
			acknowledge(e, at)
			n++
		}
	}
	return n, nil
}

// CountActiveForPair is not part of repository.EmergencyStore; tests use it
// to check how many ACTIVE rows a pair holds.
func (r *EmergencyRepository) CountActiveForPair(_ context.Context, driverNumber, vehicleNumber string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, e := range r.emergencies {
		if activeFor(e, driverNumber, vehicleNumber) {
			n++
		}
	}
	return n, nil
}

type ManagerRepository struct {
	mu       sync.RWMutex
	managers map[string]models.Manager
}

func NewManagerRepository() *ManagerRepository {
	return &ManagerRepository{managers: make(map[string]models.Manager)}
}

func (r *ManagerRepository) Create(_ context.Context, manager *models.Manager) (*models.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.managers[manager.Username]; exists {
		return nil, repository.ErrDuplicate
	}
	assignID(&manager.ID)
	r.managers[manager.Username] = *manager
	return manager, nil
}

func (r *ManagerRepository) FindByID(_ context.Context, id string) (*models.Manager, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.managers {
		if m.ID == oid {
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ManagerRepository) FindByUsername(_ context.Context, username string) (*models.Manager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *ManagerRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for username, m := range r.managers {
		if m.ID == oid {
			login := at
			m.LastLogin = &login
			m.UpdatedAt = at
			r.managers[username] = m
			return nil
		}
	}
	return repository.ErrNotFound
}

var (
	_ repository.DriverStore    = (*DriverRepository)(nil)
	_ repository.VehicleStore   = (*VehicleRepository)(nil)
	_ repository.TripStore      = (*TripRepository)(nil)
	_ repository.EmergencyStore = (*EmergencyRepository)(nil)
	_ repository.ManagerStore   = (*ManagerRepository)(nil)
)
