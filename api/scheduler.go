/*
scheduler.go - Automated maintenance scheduler

PURPOSE:
  Periodically runs the two maintenance jobs the engine needs to stay
  consistent without operator intervention:
  - Rate recalculation: rates whose amount changed leave their dependent
    unpaid payments stale until recalculated.
  - Horizon renewal: open-ended schedules only carry payments up to a
    rolling horizon and must be extended as time passes.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each job is independent; a failure in one does not block the other
  - Jobs are idempotent, so overlapping manual triggers are harmless

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewMaintenanceScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRecalculation/TriggerRenewal (manual runs)
  - activity/service.go: RecalculateOnChangedRate, RenewPayments
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// MaintenanceScheduler runs rate recalculation and horizon renewal.
type MaintenanceScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMaintenanceScheduler creates a new scheduler.
func NewMaintenanceScheduler(handler *Handler) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ms *MaintenanceScheduler) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ms.ticker = time.NewTicker(ms.CheckInterval)
	ms.wg.Add(1)

	go ms.run()

	log.Printf("[Scheduler] Started with check interval: %v", ms.CheckInterval)
}

// Stop stops the scheduler.
func (ms *MaintenanceScheduler) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ticker != nil {
		ms.ticker.Stop()
		close(ms.stop)
		ms.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ms *MaintenanceScheduler) run() {
	defer ms.wg.Done()

	// Run immediately on start
	ms.checkAndProcess()

	for {
		select {
		case <-ms.ticker.C:
			ms.checkAndProcess()
		case <-ms.stop:
			return
		}
	}
}

func (ms *MaintenanceScheduler) checkAndProcess() {
	ctx := context.Background()

	recalculated, err := ms.Handler.Service.RecalculateOnChangedRate(ctx)
	if err != nil {
		log.Printf("[Scheduler] Rate recalculation failed: %v", err)
	}

	renewed, err := ms.Handler.Service.RenewPayments(ctx)
	if err != nil {
		log.Printf("[Scheduler] Horizon renewal failed: %v", err)
	}

	if recalculated > 0 || renewed > 0 {
		log.Printf("[Scheduler] Completed: %d rates recalculated, %d schedules renewed", recalculated, renewed)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (ms *MaintenanceScheduler) RunNow() {
	ms.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ms *MaintenanceScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ms.CheckInterval)
}
