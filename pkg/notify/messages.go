package notify

import (
	"fmt"
	"time"
)

func TripAssignmentMessage(vehicleNumber, driverNumber, username, password, loginURL string) string {
	return fmt.Sprintf(
		"Trip Assignment\nVehicle: %s\nDriver: %s\nTemporary Username: %s\nTemporary Password: %s\n\nLogin at: %s",
		vehicleNumber, driverNumber, username, password, loginURL,
	)
}

func TripCancelledMessage(vehicleNumber, driverNumber string) string {
	return fmt.Sprintf(
		"Trip Cancelled\nYour trip assignment has been cancelled.\nVehicle: %s\nDriver: %s\n\nPlease contact management for details.",
		vehicleNumber, driverNumber,
	)
}

func EmergencyAlertMessage(driverName, driverNumber, vehicleNumber string, lat, lng float64, at time.Time) string {
	return fmt.Sprintf(
		"EMERGENCY ALERT\nDriver: %s (%s)\nVehicle: %s\nLocation: %.6f, %.6f\nTime: %s",
		driverName, driverNumber, vehicleNumber, lat, lng, at.Format(time.RFC1123),
	)
}
