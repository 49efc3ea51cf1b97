package batch

import (
	"time"

	"fleet-safety/internal/config"
)

// DefaultBatchConfig returns the default configuration for batch processing
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize:  100,
		BatchInterval: 2 * time.Second,
		QueueSize:     1000,
		RetryAttempts: 3,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// FromConfig overlays the LOCATION_BATCH_* settings on the defaults.
func FromConfig(cfg config.LocationBatchConfig) BatchConfig {
	c := DefaultBatchConfig()
	if cfg.MaxBatchSize > 0 {
		c.MaxBatchSize = cfg.MaxBatchSize
		if c.QueueSize < cfg.MaxBatchSize*2 {
			c.QueueSize = cfg.MaxBatchSize * 2
		}
	}
	if cfg.FlushInterval > 0 {
		c.BatchInterval = cfg.FlushInterval
	}
	return c
}

// ValidateConfig validates the batch configuration
func ValidateConfig(config BatchConfig) error {
	switch {
	case config.MaxBatchSize <= 0:
		return ErrInvalidBatchSize
	case config.BatchInterval <= 0:
		return ErrInvalidBatchInterval
	case config.QueueSize <= 0:
		return ErrInvalidQueueSize
	case config.RetryAttempts < 0:
		return ErrInvalidRetryAttempts
	case config.RetryBackoff < 0:
		return ErrInvalidRetryBackoff
	}
	return nil
}
