package memory

import (
	"context"
	"testing"
	"time"

	"fleet-safety/internal/models"
	"fleet-safety/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmergencyRepository_LatestActiveAndCascade(t *testing.T) {
	ctx := context.Background()
	repo := NewEmergencyRepository()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	older, err := repo.Create(ctx, &models.Emergency{DriverNumber: "DRV-1", VehicleNumber: "VEH-1", Status: models.EmergencyStatusActive, CreatedAt: base})
	require.NoError(t, err)
	newer, err := repo.Create(ctx, &models.Emergency{DriverNumber: "DRV-1", VehicleNumber: "VEH-1", Status: models.EmergencyStatusActive, CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Emergency{DriverNumber: "DRV-2", VehicleNumber: "VEH-1", Status: models.EmergencyStatusActive, CreatedAt: base})
	require.NoError(t, err)

	latest, err := repo.FindLatestActive(ctx, "DRV-1", "VEH-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	acked, err := repo.Acknowledge(ctx, older.ID.Hex(), base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyStatusAcknowledged, acked.Status)

	n, err := repo.AcknowledgeActiveForPair(ctx, "DRV-1", "VEH-1", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := repo.CountActiveForPair(ctx, "DRV-1", "VEH-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.CountActiveForPair(ctx, "DRV-2", "VEH-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = repo.FindLatestActive(ctx, "DRV-1", "VEH-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEmergencyRepository_AcknowledgeKeepsFirstTimestamp(t *testing.T) {
	ctx := context.Background()
	repo := NewEmergencyRepository()
	e, _ := repo.Create(ctx, &models.Emergency{DriverNumber: "D", VehicleNumber: "V", Status: models.EmergencyStatusActive, CreatedAt: time.Now()})

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := repo.Acknowledge(ctx, e.ID.Hex(), first)
	require.NoError(t, err)
	again, err := repo.Acknowledge(ctx, e.ID.Hex(), first.Add(time.Hour))
	require.NoError(t, err)

	require.NotNil(t, again.AcknowledgedAt)
	assert.Equal(t, first, *again.AcknowledgedAt)

	_, err = repo.Acknowledge(ctx, "not-an-id", first)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTripRepository_ActiveLookupsAndComplete(t *testing.T) {
	ctx := context.Background()
	repo := NewTripRepository()
	now := time.Now()

	trip, err := repo.Create(ctx, &models.Trip{DriverNumber: "DRV-1", VehicleNumber: "VEH-1", TemporaryUsername: "temp_a", Status: models.TripStatusActive, CreatedAt: now})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.Trip{TemporaryUsername: "temp_a"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	found, err := repo.FindActiveByVehicle(ctx, "VEH-1")
	require.NoError(t, err)
	assert.Equal(t, trip.ID, found.ID)

	done, err := repo.Complete(ctx, trip.ID.Hex(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, err = repo.FindActiveByDriver(ctx, "DRV-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	byUser, err := repo.FindByUsername(ctx, "temp_a")
	require.NoError(t, err)
	assert.False(t, byUser.IsActive())
}

func TestVehicleRepository_LocationFixesNeverGoBackwards(t *testing.T) {
	ctx := context.Background()
	repo := NewVehicleRepository()
	_, err := repo.Create(ctx, &models.Vehicle{VehicleNumber: "VEH-1"})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, repo.UpdateLastLocation(ctx, models.LocationFix{VehicleNumber: "VEH-1", Location: models.Location{Lat: 1, Lng: 1}, ReportedAt: now}))
	require.NoError(t, repo.UpdateLastLocations(ctx, map[string]models.LocationFix{
		"VEH-1":   {VehicleNumber: "VEH-1", Location: models.Location{Lat: 0, Lng: 0}, ReportedAt: now.Add(-time.Minute)},
		"UNKNOWN": {VehicleNumber: "UNKNOWN", ReportedAt: now},
	}))

	v, err := repo.FindByNumber(ctx, "VEH-1")
	require.NoError(t, err)
	require.NotNil(t, v.LastLocation)
	assert.Equal(t, 1.0, v.LastLocation.Lat)
}

func TestDriverRepository_DuplicateAndContactUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewDriverRepository()
	_, err := repo.Create(ctx, &models.Driver{DriverNumber: "DRV-1", Name: "Asha", Phone: "111"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.Driver{DriverNumber: "DRV-1"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	phone := "222"
	updated, err := repo.UpdateContact(ctx, "DRV-1", models.DriverContactUpdate{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Asha", updated.Name)
	assert.Equal(t, "222", updated.Phone)

	_, err = repo.UpdateContact(ctx, "DRV-9", models.DriverContactUpdate{Phone: &phone})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
