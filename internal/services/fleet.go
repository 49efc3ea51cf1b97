package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet-safety/internal/models"
	"fleet-safety/internal/repository"
)

// FleetService is the thin reference-data layer for drivers and vehicles.
type FleetService struct {
	drivers  repository.DriverStore
	vehicles repository.VehicleStore
}

func NewFleetService(drivers repository.DriverStore, vehicles repository.VehicleStore) *FleetService {
	return &FleetService{drivers: drivers, vehicles: vehicles}
}

type CreateDriverRequest struct {
	DriverNumber  string `json:"driverNumber" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Phone         string `json:"phone" validate:"required,min=5"`
	LicenseNumber string `json:"licenseNumber"`
}

type CreateVehicleRequest struct {
	VehicleNumber  string  `json:"vehicleNumber" validate:"required"`
	Type           string  `json:"type" validate:"required"`
	Make           string  `json:"make"`
	Model          string  `json:"model"`
	CurrentFuel    float64 `json:"currentFuel" validate:"gte=0"`
	CurrentMileage float64 `json:"currentMileage" validate:"gte=0"`
}

func (s *FleetService) CreateDriver(ctx context.Context, req *CreateDriverRequest) (*models.Driver, error) {
	now := time.Now()
	driver, err := s.drivers.Create(ctx, &models.Driver{
		DriverNumber:  strings.TrimSpace(req.DriverNumber),
		Name:          req.Name,
		Phone:         req.Phone,
		LicenseNumber: req.LicenseNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, &ConflictError{Message: fmt.Sprintf("driver %s already exists", req.DriverNumber)}
	}
	return driver, err
}

func (s *FleetService) ListDrivers(ctx context.Context) ([]*models.Driver, error) {
	return s.drivers.FindAll(ctx)
}

func (s *FleetService) GetDriver(ctx context.Context, driverNumber string) (*models.Driver, error) {
	driver, err := s.drivers.FindByNumber(ctx, driverNumber)
	if err != nil {
		return nil, lookupErr(err, "driver", driverNumber)
	}
	return driver, nil
}

func (s *FleetService) UpdateDriverContact(ctx context.Context, driverNumber string, update models.DriverContactUpdate) (*models.Driver, error) {
	if update.Name == nil && update.Phone == nil {
		return nil, invalid("", "nothing to update")
	}
	driver, err := s.drivers.UpdateContact(ctx, driverNumber, update)
	if err != nil {
		return nil, lookupErr(err, "driver", driverNumber)
	}
	return driver, nil
}

func (s *FleetService) CreateVehicle(ctx context.Context, req *CreateVehicleRequest) (*models.Vehicle, error) {
	now := time.Now()
	vehicle, err := s.vehicles.Create(ctx, &models.Vehicle{
		VehicleNumber:  strings.TrimSpace(req.VehicleNumber),
		Type:           req.Type,
		Make:           req.Make,
		Model:          req.Model,
		CurrentFuel:    req.CurrentFuel,
		CurrentMileage: req.CurrentMileage,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, &ConflictError{Message: fmt.Sprintf("vehicle %s already exists", req.VehicleNumber)}
	}
	return vehicle, err
}

func (s *FleetService) ListVehicles(ctx context.Context) ([]*models.Vehicle, error) {
	return s.vehicles.FindAll(ctx)
}

func (s *FleetService) GetVehicle(ctx context.Context, vehicleNumber string) (*models.Vehicle, error) {
	vehicle, err := s.vehicles.FindByNumber(ctx, vehicleNumber)
	if err != nil {
		return nil, lookupErr(err, "vehicle", vehicleNumber)
	}
	return vehicle, nil
}

func (s *FleetService) UpdateVehicleTelemetry(ctx context.Context, vehicleNumber string, update models.VehicleTelemetryUpdate) (*models.Vehicle, error) {
	if update.CurrentFuel == nil && update.CurrentMileage == nil {
		return nil, invalid("", "nothing to update")
	}
	vehicle, err := s.vehicles.UpdateTelemetry(ctx, vehicleNumber, update)
	if err != nil {
		return nil, lookupErr(err, "vehicle", vehicleNumber)
	}
	return vehicle, nil
}
