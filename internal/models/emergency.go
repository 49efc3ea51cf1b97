package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EmergencyStatusActive       = "ACTIVE"
	EmergencyStatusAcknowledged = "ACKNOWLEDGED"
)

const (
	FacilityPolice   = "police"
	FacilityHospital = "hospital"
)

type Emergency struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DriverNumber   string             `bson:"driver_number" json:"driverNumber"`
	VehicleNumber  string             `bson:"vehicle_number" json:"vehicleNumber"`
	Latitude       float64            `bson:"latitude" json:"latitude"`
	Longitude      float64            `bson:"longitude" json:"longitude"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
	VideoRef       string             `bson:"video_ref,omitempty" json:"videoRef,omitempty"`
	Status         string             `bson:"status" json:"status"`
	AcknowledgedAt *time.Time         `bson:"acknowledged_at,omitempty" json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
}

func (e *Emergency) IsActive() bool {
	return e.Status == EmergencyStatusActive
}

// NearbyFacility is derived from an emergency's coordinates and never stored.
type NearbyFacility struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Location   Location `json:"location"`
	DistanceKm float64  `json:"distance"`
	Phone      string   `json:"phone"`
}

type EmergencyDetails struct {
	*Emergency
	Driver  *Driver  `json:"driver,omitempty"`
	Vehicle *Vehicle `json:"vehicle,omitempty"`
}

type EmergencyBroadcast struct {
	Emergency        *Emergency       `json:"emergency"`
	Driver           *Driver          `json:"driver"`
	Vehicle          *Vehicle         `json:"vehicle"`
	NearbyFacilities []NearbyFacility `json:"nearbyFacilities"`
}

type StopAlarm struct {
	EmergencyID   string `json:"emergencyId"`
	DriverNumber  string `json:"driverNumber"`
	VehicleNumber string `json:"vehicleNumber"`
}

type Acknowledgement struct {
	EmergencyID string     `json:"emergencyId"`
	Message     string     `json:"message"`
	Emergency   *Emergency `json:"emergency"`
}

// TriggerResult is what the trigger endpoint hands back to the device.
type TriggerResult struct {
	Emergency        *Emergency       `json:"emergency"`
	Deduplicated     bool             `json:"deduplicated"`
	NearbyFacilities []NearbyFacility `json:"nearbyFacilities"`
}
