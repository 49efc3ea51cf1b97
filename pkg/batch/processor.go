package batch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fleet-safety/internal/models"
)

// LocationProcessor collapses location fixes per vehicle and writes the
// newest one of each to the store in bulk. Relaying to clients happens
// elsewhere and is never delayed by this queue.
type LocationProcessor struct {
	config BatchConfig
	store  LocationStore

	pending    map[string]models.LocationFix
	pendingMux sync.Mutex

	queue    chan models.LocationFix
	ctx      context.Context
	cancel   context.CancelFunc
	workerWg sync.WaitGroup
	stopOnce sync.Once

	stats    BatchStats
	statsMux sync.RWMutex
}

func NewLocationProcessor(config BatchConfig, store LocationStore) (*LocationProcessor, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LocationProcessor{
		config:  config,
		store:   store,
		pending: make(map[string]models.LocationFix),
		queue:   make(chan models.LocationFix, config.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Record queues a fix without blocking.
func (p *LocationProcessor) Record(fix models.LocationFix) error {
	if p.ctx.Err() != nil {
		return ErrStopped
	}

	select {
	case p.queue <- fix:
		return nil
	default:
		p.statsMux.Lock()
		p.stats.DroppedUpdates++
		p.statsMux.Unlock()
		return fmt.Errorf("%w: dropping fix for vehicle %s", ErrQueueFull, fix.VehicleNumber)
	}
}

func (p *LocationProcessor) Start() error {
	p.workerWg.Add(1)
	go p.worker()
	log.Println("Location batch processor started")
	return nil
}

// Stop drains the queue, flushes what is pending and waits for the worker.
func (p *LocationProcessor) Stop() error {
	p.stopOnce.Do(func() {
		p.cancel()
		p.workerWg.Wait()
		log.Println("Location batch processor stopped")
	})
	return nil
}

func (p *LocationProcessor) worker() {
	defer p.workerWg.Done()

	ticker := time.NewTicker(p.config.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case fix := <-p.queue:
			if p.add(fix) >= p.config.MaxBatchSize {
				p.flushLogged(context.Background(), "full")
			}

		case <-ticker.C:
			p.flushLogged(context.Background(), "interval")

		case <-p.ctx.Done():
		drain:
			for {
				select {
				case fix := <-p.queue:
					p.add(fix)
				default:
					break drain
				}
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			p.flushLogged(ctx, "final")
			cancel()
			return
		}
	}
}

func (p *LocationProcessor) flushLogged(ctx context.Context, reason string) {
	if err := p.Flush(ctx); err != nil {
		log.Printf("Error processing %s location batch: %v", reason, err)
	}
}

// add keeps the newest fix per vehicle and returns the number of pending vehicles.
func (p *LocationProcessor) add(fix models.LocationFix) int {
	p.pendingMux.Lock()
	defer p.pendingMux.Unlock()

	if current, ok := p.pending[fix.VehicleNumber]; ok {
		p.statsMux.Lock()
		p.stats.CollapsedUpdates++
		p.statsMux.Unlock()
		if current.ReportedAt.After(fix.ReportedAt) {
			return len(p.pending)
		}
	}
	p.pending[fix.VehicleNumber] = fix
	return len(p.pending)
}

// Flush writes everything pending now.
func (p *LocationProcessor) Flush(ctx context.Context) error {
	p.pendingMux.Lock()
	current := p.pending
	p.pending = make(map[string]models.LocationFix)
	p.pendingMux.Unlock()

	if len(current) == 0 {
		return nil
	}

	start := time.Now()
	batches := p.split(current)

	var failed int
	for _, batch := range batches {
		if err := p.writeBatch(ctx, batch); err != nil {
			log.Printf("Error writing location batch: %v", err)
			failed++
		}
	}

	p.updateStats(len(batches), len(current), time.Since(start))

	if failed > 0 {
		return fmt.Errorf("failed to write %d out of %d location batches", failed, len(batches))
	}
	return nil
}

// writeBatch retries the bulk write with exponential backoff, then falls
// back to one write per vehicle.
func (p *LocationProcessor) writeBatch(ctx context.Context, batch map[string]models.LocationFix) error {
	backoff := p.config.RetryBackoff
	for attempt := 0; attempt <= p.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		err := p.store.UpdateLastLocations(ctx, batch)
		if err == nil {
			return nil
		}
		log.Printf("Location batch attempt %d/%d failed: %v", attempt+1, p.config.RetryAttempts+1, err)
	}

	log.Printf("All location batch retries failed, falling back to individual updates")
	return p.writeEach(ctx, batch)
}

func (p *LocationProcessor) writeEach(ctx context.Context, batch map[string]models.LocationFix) error {
	var failures []string
	for vehicleNumber, fix := range batch {
		if err := p.store.UpdateLastLocation(ctx, fix); err != nil {
			failures = append(failures, fmt.Sprintf("vehicle %s: %v", vehicleNumber, err))
		}
	}

	if len(failures) > 0 {
		p.statsMux.Lock()
		p.stats.FailedUpdates += int64(len(failures))
		p.statsMux.Unlock()
		return fmt.Errorf("individual location update failures: %v", failures)
	}
	return nil
}

func (p *LocationProcessor) split(fixes map[string]models.LocationFix) []map[string]models.LocationFix {
	if len(fixes) <= p.config.MaxBatchSize {
		return []map[string]models.LocationFix{fixes}
	}

	var batches []map[string]models.LocationFix
	current := make(map[string]models.LocationFix)
	for vehicleNumber, fix := range fixes {
		current[vehicleNumber] = fix
		if len(current) >= p.config.MaxBatchSize {
			batches = append(batches, current)
			current = make(map[string]models.LocationFix)
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (p *LocationProcessor) GetBatchStats() BatchStats {
	p.statsMux.RLock()
	defer p.statsMux.RUnlock()
	return p.stats
}

func (p *LocationProcessor) updateStats(batchCount, updateCount int, elapsed time.Duration) {
	p.statsMux.Lock()
	defer p.statsMux.Unlock()

	p.stats.BatchesProcessed += batchCount
	p.stats.TotalUpdates += int64(updateCount)
	p.stats.LastProcessedAt = time.Now()
	p.stats.ProcessingTime = elapsed

	if p.stats.BatchesProcessed > 0 {
		p.stats.AverageSize = float64(p.stats.TotalUpdates) / float64(p.stats.BatchesProcessed)
	}
	if p.stats.TotalUpdates > 0 {
		p.stats.ErrorRate = float64(p.stats.FailedUpdates) / float64(p.stats.TotalUpdates)
	}
}
