package batch

import (
	"context"
	"errors"
	"time"

	"fleet-safety/internal/models"
)

// LocationStore persists last-known vehicle positions.
type LocationStore interface {
	UpdateLastLocation(ctx context.Context, fix models.LocationFix) error
	UpdateLastLocations(ctx context.Context, fixes map[string]models.LocationFix) error
}

// BatchStats provides statistics about batch processing
type BatchStats struct {
	BatchesProcessed int           `json:"batchesProcessed"`
	AverageSize      float64       `json:"averageSize"`
	ProcessingTime   time.Duration `json:"processingTime"`
	ErrorRate        float64       `json:"errorRate"`
	TotalUpdates     int64         `json:"totalUpdates"`
	CollapsedUpdates int64         `json:"collapsedUpdates"`
	DroppedUpdates   int64         `json:"droppedUpdates"`
	FailedUpdates    int64         `json:"failedUpdates"`
	LastProcessedAt  time.Time     `json:"lastProcessedAt"`
}

// BatchConfig holds configuration for batch processing
type BatchConfig struct {
	MaxBatchSize  int           `json:"maxBatchSize"`
	BatchInterval time.Duration `json:"batchInterval"`
	QueueSize     int           `json:"queueSize"`
	RetryAttempts int           `json:"retryAttempts"`
	RetryBackoff  time.Duration `json:"retryBackoff"`
}

var (
	ErrInvalidBatchSize     = errors.New("invalid batch size: must be greater than 0")
	ErrInvalidBatchInterval = errors.New("invalid batch interval: must be greater than 0")
	ErrInvalidQueueSize     = errors.New("invalid queue size: must be greater than 0")
	ErrInvalidRetryAttempts = errors.New("invalid retry attempts: must be greater than or equal to 0")
	ErrInvalidRetryBackoff  = errors.New("invalid retry backoff: must be greater than or equal to 0")

	ErrStopped   = errors.New("batch processor is stopped")
	ErrQueueFull = errors.New("location queue is full")
)
