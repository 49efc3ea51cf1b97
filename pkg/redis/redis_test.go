package redis

import (
	"context"
	"testing"
	"time"

	"fleet-safety/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(mr *miniredis.Miniredis) config.RedisConfig {
	return config.RedisConfig{
		Host:         mr.Host(),
		Port:         mr.Port(),
		PoolSize:     5,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

func TestNewClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewClient(testConfig(mr))
	defer client.Close()

	require.NotNil(t, client.GetClient())
	assert.True(t, client.IsConnected())
	assert.Equal(t, mr.Addr(), client.Addr())

	require.NoError(t, client.GetClient().Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewClient_FromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewClient(config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"})
	defer client.Close()

	assert.True(t, client.IsConnected())
	assert.Equal(t, mr.Addr(), client.Addr())
}

func TestHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewClient(testConfig(mr))
	defer client.Close()

	status := client.HealthCheck()
	assert.True(t, status.IsConnected)
	assert.Empty(t, status.Error)
	assert.Equal(t, mr.Addr(), status.ConnectionInfo)
	assert.False(t, status.LastPing.IsZero())
}

func TestHealthCheck_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewClient(testConfig(mr))
	defer client.Close()

	mr.Close()

	status := client.HealthCheck()
	assert.False(t, status.IsConnected)
	assert.NotEmpty(t, status.Error)
	assert.False(t, client.IsConnected())
}

func TestGetConnectionStats(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewClient(testConfig(mr))
	defer client.Close()

	stats := client.GetConnectionStats()
	for _, key := range []string{"hits", "misses", "timeouts", "totalConns", "idleConns", "staleConns", "isConnected"} {
		assert.Contains(t, stats, key)
	}
	assert.Equal(t, true, stats["isConnected"])
}
