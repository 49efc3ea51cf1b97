package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Vehicle struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleNumber  string             `bson:"vehicle_number" json:"vehicleNumber" validate:"required"`
	Type           string             `bson:"type" json:"type"`
	Make           string             `bson:"make,omitempty" json:"make,omitempty"`
	Model          string             `bson:"model,omitempty" json:"model,omitempty"`
	CurrentFuel    float64            `bson:"current_fuel" json:"currentFuel"`
	CurrentMileage float64            `bson:"current_mileage" json:"currentMileage"`
	LastLocation   *Location          `bson:"last_location,omitempty" json:"lastLocation,omitempty"`
	LastLocationAt *time.Time         `bson:"last_location_at,omitempty" json:"lastLocationAt,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updatedAt"`
}

type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// VehicleTelemetryUpdate carries the mutable telemetry fields of a vehicle.
type VehicleTelemetryUpdate struct {
	CurrentFuel    *float64 `json:"currentFuel" validate:"omitempty,gte=0"`
	CurrentMileage *float64 `json:"currentMileage" validate:"omitempty,gte=0"`
}

// LocationFix is a single last-known position reported by a device.
type LocationFix struct {
	VehicleNumber string    `json:"vehicleNumber"`
	Location      Location  `json:"location"`
	ReportedAt    time.Time `json:"reportedAt"`
}
