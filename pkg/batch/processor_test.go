package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fleet-safety/internal/config"
	"fleet-safety/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLocationStore struct {
	mock.Mock
	mu sync.Mutex
}

func (m *MockLocationStore) UpdateLastLocation(ctx context.Context, fix models.LocationFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Called(fix).Error(0)
}

func (m *MockLocationStore) UpdateLastLocations(ctx context.Context, fixes map[string]models.LocationFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]models.LocationFix, len(fixes))
	for k, v := range fixes {
		copied[k] = v
	}
	return m.Called(copied).Error(0)
}

func testConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize:  10,
		BatchInterval: time.Hour,
		QueueSize:     20,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
	}
}

func fix(vehicle string, lat float64, at time.Time) models.LocationFix {
	return models.LocationFix{VehicleNumber: vehicle, Location: models.Location{Lat: lat, Lng: 1}, ReportedAt: at}
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(DefaultBatchConfig()))

	tests := []struct {
		name   string
		modify func(*BatchConfig)
		want   error
	}{
		{"batch size", func(c *BatchConfig) { c.MaxBatchSize = 0 }, ErrInvalidBatchSize},
		{"interval", func(c *BatchConfig) { c.BatchInterval = 0 }, ErrInvalidBatchInterval},
		{"queue", func(c *BatchConfig) { c.QueueSize = 0 }, ErrInvalidQueueSize},
		{"retries", func(c *BatchConfig) { c.RetryAttempts = -1 }, ErrInvalidRetryAttempts},
		{"backoff", func(c *BatchConfig) { c.RetryBackoff = -time.Second }, ErrInvalidRetryBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultBatchConfig()
			tt.modify(&c)
			assert.ErrorIs(t, ValidateConfig(c), tt.want)
		})
	}
}

func TestFromConfig(t *testing.T) {
	c := FromConfig(config.LocationBatchConfig{MaxBatchSize: 800, FlushInterval: 5 * time.Second})
	assert.Equal(t, 800, c.MaxBatchSize)
	assert.Equal(t, 1600, c.QueueSize)
	assert.Equal(t, 5*time.Second, c.BatchInterval)

	assert.Equal(t, DefaultBatchConfig(), FromConfig(config.LocationBatchConfig{}))
}

func TestFlush_CollapsesPerVehicle(t *testing.T) {
	store := &MockLocationStore{}
	p, err := NewLocationProcessor(testConfig(), store)
	require.NoError(t, err)

	t0 := time.Now()
	p.add(fix("VEH-1", 1, t0))
	p.add(fix("VEH-1", 2, t0.Add(time.Second)))
	p.add(fix("VEH-1", 9, t0.Add(-time.Second))) // late arrival, older fix
	p.add(fix("VEH-2", 3, t0))

	store.On("UpdateLastLocations", map[string]models.LocationFix{
		"VEH-1": fix("VEH-1", 2, t0.Add(time.Second)),
		"VEH-2": fix("VEH-2", 3, t0),
	}).Return(nil).Once()

	require.NoError(t, p.Flush(context.Background()))
	store.AssertExpectations(t)

	stats := p.GetBatchStats()
	assert.Equal(t, 1, stats.BatchesProcessed)
	assert.Equal(t, int64(2), stats.TotalUpdates)
	assert.Equal(t, int64(2), stats.CollapsedUpdates)

	// nothing pending: no store call
	require.NoError(t, p.Flush(context.Background()))
	store.AssertNumberOfCalls(t, "UpdateLastLocations", 1)
}

func TestFlush_RetriesThenFallsBack(t *testing.T) {
	store := &MockLocationStore{}
	p, err := NewLocationProcessor(testConfig(), store)
	require.NoError(t, err)

	t0 := time.Now()
	p.add(fix("VEH-1", 1, t0))
	p.add(fix("VEH-2", 2, t0))

	store.On("UpdateLastLocations", mock.Anything).Return(errors.New("bulk write failed"))
	store.On("UpdateLastLocation", fix("VEH-1", 1, t0)).Return(nil).Once()
	store.On("UpdateLastLocation", fix("VEH-2", 2, t0)).Return(errors.New("write failed")).Once()

	err = p.Flush(context.Background())
	require.Error(t, err)

	store.AssertNumberOfCalls(t, "UpdateLastLocations", 3)
	store.AssertNumberOfCalls(t, "UpdateLastLocation", 2)
	assert.Equal(t, int64(1), p.GetBatchStats().FailedUpdates)
	assert.Equal(t, 0.5, p.GetBatchStats().ErrorRate)
}

func TestFlush_SplitsLargeBatches(t *testing.T) {
	store := &MockLocationStore{}
	cfg := testConfig()
	cfg.MaxBatchSize = 3
	p, err := NewLocationProcessor(cfg, store)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		p.add(fix(fmt.Sprintf("VEH-%d", i), float64(i), time.Now()))
	}
	store.On("UpdateLastLocations", mock.Anything).Return(nil)

	require.NoError(t, p.Flush(context.Background()))
	store.AssertNumberOfCalls(t, "UpdateLastLocations", 3)
	assert.Equal(t, 3, p.GetBatchStats().BatchesProcessed)
}

func TestRecord_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	p, err := NewLocationProcessor(cfg, &MockLocationStore{})
	require.NoError(t, err)

	require.NoError(t, p.Record(fix("VEH-1", 1, time.Now())))
	err = p.Record(fix("VEH-2", 1, time.Now()))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), p.GetBatchStats().DroppedUpdates)
}

func TestWorker_FlushesWhenFull(t *testing.T) {
	store := &MockLocationStore{}
	cfg := testConfig()
	cfg.MaxBatchSize = 2
	p, err := NewLocationProcessor(cfg, store)
	require.NoError(t, err)

	flushed := make(chan map[string]models.LocationFix, 1)
	store.On("UpdateLastLocations", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		flushed <- args.Get(0).(map[string]models.LocationFix)
	}).Once()

	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.Record(fix("VEH-1", 1, time.Now())))
	require.NoError(t, p.Record(fix("VEH-2", 1, time.Now())))

	select {
	case batch := <-flushed:
		assert.Len(t, batch, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not flushed when full")
	}
}

func TestWorker_FlushesOnInterval(t *testing.T) {
	store := &MockLocationStore{}
	cfg := testConfig()
	cfg.BatchInterval = 20 * time.Millisecond
	p, err := NewLocationProcessor(cfg, store)
	require.NoError(t, err)

	store.On("UpdateLastLocations", mock.Anything).Return(nil)

	require.NoError(t, p.Start())
	defer p.Stop()
	require.NoError(t, p.Record(fix("VEH-1", 1, time.Now())))

	assert.Eventually(t, func() bool {
		return p.GetBatchStats().TotalUpdates == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStop_FlushesPending(t *testing.T) {
	store := &MockLocationStore{}
	p, err := NewLocationProcessor(testConfig(), store)
	require.NoError(t, err)
	store.On("UpdateLastLocations", mock.Anything).Return(nil).Once()

	require.NoError(t, p.Start())
	require.NoError(t, p.Record(fix("VEH-1", 1, time.Now())))
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())

	store.AssertExpectations(t)
	assert.ErrorIs(t, p.Record(fix("VEH-1", 2, time.Now())), ErrStopped)
}
