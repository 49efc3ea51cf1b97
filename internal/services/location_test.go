package services

import (
	"encoding/json"
	"errors"
	"testing"

	"fleet-safety/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRecorder struct {
	fixes []models.LocationFix
	err   error
}

func (r *recordingRecorder) Record(fix models.LocationFix) error {
	r.fixes = append(r.fixes, fix)
	return r.err
}

func TestHandleLocationUpdate_RelaysVerbatimAndRecords(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	recorder := &recordingRecorder{}
	svc := NewLocationService(broadcaster)
	svc.SetRecorder(recorder)

	raw := json.RawMessage(`{"vehicleNumber":"VEH-1","driverNumber":"DRV-1","latitude":12.5,"longitude":56.9,"speed":42}`)
	svc.HandleLocationUpdate(raw)

	events := broadcaster.named(models.EventReceiveLocation)
	require.Len(t, events, 1)
	assert.Equal(t, raw, events[0].Data)

	require.Len(t, recorder.fixes, 1)
	assert.Equal(t, "VEH-1", recorder.fixes[0].VehicleNumber)
	assert.Equal(t, models.Location{Lat: 12.5, Lng: 56.9}, recorder.fixes[0].Location)
}

func TestHandleLocationUpdate_NestedLocation(t *testing.T) {
	recorder := &recordingRecorder{}
	svc := NewLocationService(&recordingBroadcaster{})
	svc.SetRecorder(recorder)

	svc.HandleLocationUpdate(json.RawMessage(`{"vehicleNumber":"VEH-2","location":{"lat":1.5,"lng":2.5}}`))

	require.Len(t, recorder.fixes, 1)
	assert.Equal(t, models.Location{Lat: 1.5, Lng: 2.5}, recorder.fixes[0].Location)
}

func TestHandleLocationUpdate_UnparseableStillRelayed(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	recorder := &recordingRecorder{err: errors.New("queue full")}
	svc := NewLocationService(broadcaster)
	svc.SetRecorder(recorder)

	svc.HandleLocationUpdate(json.RawMessage(`{"note":"no vehicle"}`))
	svc.HandleLocationUpdate(json.RawMessage(`{"vehicleNumber":"VEH-1","latitude":"north"}`))
	svc.HandleLocationUpdate(nil)

	assert.Len(t, broadcaster.named(models.EventReceiveLocation), 2)
	assert.Empty(t, recorder.fixes)
}
