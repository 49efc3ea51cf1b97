package repository

import (
	"context"
	"errors"
	"time"

	"fleet-safety/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type DriverStore interface {
	Create(ctx context.Context, driver *models.Driver) (*models.Driver, error)
	FindByNumber(ctx context.Context, driverNumber string) (*models.Driver, error)
	FindAll(ctx context.Context) ([]*models.Driver, error)
	UpdateContact(ctx context.Context, driverNumber string, update models.DriverContactUpdate) (*models.Driver, error)
}

type VehicleStore interface {
	Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error)
	FindByNumber(ctx context.Context, vehicleNumber string) (*models.Vehicle, error)
	FindAll(ctx context.Context) ([]*models.Vehicle, error)
	UpdateTelemetry(ctx context.Context, vehicleNumber string, update models.VehicleTelemetryUpdate) (*models.Vehicle, error)
	UpdateLastLocation(ctx context.Context, fix models.LocationFix) error
	UpdateLastLocations(ctx context.Context, fixes map[string]models.LocationFix) error
}

// TripStore persists trips. The FindActive* lookups return the most recently
// created ACTIVE trip for the key.
type TripStore interface {
	Create(ctx context.Context, trip *models.Trip) (*models.Trip, error)
	FindByID(ctx context.Context, id string) (*models.Trip, error)
	FindActiveByDriver(ctx context.Context, driverNumber string) (*models.Trip, error)
	FindActiveByVehicle(ctx context.Context, vehicleNumber string) (*models.Trip, error)
	FindByUsername(ctx context.Context, username string) (*models.Trip, error)
	FindAll(ctx context.Context) ([]*models.Trip, error)
	Complete(ctx context.Context, id string, at time.Time) (*models.Trip, error)
}

// EmergencyStore persists emergencies. Rows are never deleted.
type EmergencyStore interface {
	Create(ctx context.Context, emergency *models.Emergency) (*models.Emergency, error)
	FindByID(ctx context.Context, id string) (*models.Emergency, error)
	FindLatestActive(ctx context.Context, driverNumber, vehicleNumber string) (*models.Emergency, error)
	FindAll(ctx context.Context) ([]*models.Emergency, error)
	Acknowledge(ctx context.Context, id string, at time.Time) (*models.Emergency, error)
	AcknowledgeActiveForPair(ctx context.Context, driverNumber, vehicleNumber string, at time.Time) (int64, error)
}

type ManagerStore interface {
	Create(ctx context.Context, manager *models.Manager) (*models.Manager, error)
	FindByID(ctx context.Context, id string) (*models.Manager, error)
	FindByUsername(ctx context.Context, username string) (*models.Manager, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
