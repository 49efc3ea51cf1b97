package services

import (
	"context"
	"errors"
	"testing"

	"fleet-safety/internal/models"
	"fleet-safety/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFleetService_DriversAndVehicles(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewFleetService(store.Drivers, store.Vehicles)

	_, err := svc.CreateDriver(ctx, &CreateDriverRequest{DriverNumber: "DRV-1", Name: "Asha", Phone: "9876543210"})
	require.NoError(t, err)

	var conflict *ConflictError
	_, err = svc.CreateDriver(ctx, &CreateDriverRequest{DriverNumber: "DRV-1", Name: "Other", Phone: "9876543211"})
	assert.True(t, errors.As(err, &conflict))

	name := "Asha R"
	driver, err := svc.UpdateDriverContact(ctx, "DRV-1", models.DriverContactUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Asha R", driver.Name)

	var validation *ValidationError
	_, err = svc.UpdateDriverContact(ctx, "DRV-1", models.DriverContactUpdate{})
	assert.True(t, errors.As(err, &validation))

	_, err = svc.CreateVehicle(ctx, &CreateVehicleRequest{VehicleNumber: "VEH-1", Type: "truck", CurrentFuel: 40})
	require.NoError(t, err)

	fuel := 12.5
	vehicle, err := svc.UpdateVehicleTelemetry(ctx, "VEH-1", models.VehicleTelemetryUpdate{CurrentFuel: &fuel})
	require.NoError(t, err)
	assert.Equal(t, 12.5, vehicle.CurrentFuel)

	var notFound *NotFoundError
	_, err = svc.UpdateVehicleTelemetry(ctx, "VEH-9", models.VehicleTelemetryUpdate{CurrentFuel: &fuel})
	assert.True(t, errors.As(err, &notFound))

	vehicles, err := svc.ListVehicles(ctx)
	require.NoError(t, err)
	assert.Len(t, vehicles, 1)
}
