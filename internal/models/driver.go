package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Driver struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DriverNumber  string             `bson:"driver_number" json:"driverNumber" validate:"required"`
	Name          string             `bson:"name" json:"name" validate:"required"`
	Phone         string             `bson:"phone" json:"phone" validate:"required"`
	LicenseNumber string             `bson:"license_number" json:"licenseNumber"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

// DriverContactUpdate holds the only driver fields that may change after creation.
type DriverContactUpdate struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Phone *string `json:"phone" validate:"omitempty,min=5"`
}
