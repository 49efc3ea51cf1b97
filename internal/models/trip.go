package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TripStatusActive    = "ACTIVE"
	TripStatusCompleted = "COMPLETED"
)

type Trip struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DriverNumber          string             `bson:"driver_number" json:"driverNumber"`
	VehicleNumber         string             `bson:"vehicle_number" json:"vehicleNumber"`
	TemporaryUsername     string             `bson:"temporary_username" json:"temporaryUsername"`
	TemporaryPasswordHash string             `bson:"temporary_password_hash" json:"-"`
	Status                string             `bson:"status" json:"status"`
	CreatedAt             time.Time          `bson:"created_at" json:"createdAt"`
	CompletedAt           *time.Time         `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
}

func (t *Trip) IsActive() bool {
	return t.Status == TripStatusActive
}

// TripCredentials is the one-time plaintext login payload handed to the driver.
type TripCredentials struct {
	TemporaryUsername string `json:"temporaryUsername"`
	TemporaryPassword string `json:"temporaryPassword"`
	LoginURL          string `json:"loginUrl"`
}

type TripAssignment struct {
	Trip        *Trip           `json:"trip"`
	Credentials TripCredentials `json:"credentials"`
	SMSSent     bool            `json:"smsSent"`
}
