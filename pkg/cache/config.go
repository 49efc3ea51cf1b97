package cache

import "time"

// CacheConfig holds TTLs and key layout for the cache.
type CacheConfig struct {
	EmergencyListTTL time.Duration `json:"emergencyListTTL"`
	DetailTTL        time.Duration `json:"detailTTL"`
	KeyPrefix        string        `json:"keyPrefix"`
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		EmergencyListTTL: 5 * time.Second,
		DetailTTL:        30 * time.Second,
		KeyPrefix:        "fleet-safety:",
	}
}

// GetTTLForDataType returns appropriate TTL based on data type
func (c CacheConfig) GetTTLForDataType(dataType string) time.Duration {
	switch dataType {
	case "emergency_list":
		return c.EmergencyListTTL
	default:
		return c.DetailTTL
	}
}
