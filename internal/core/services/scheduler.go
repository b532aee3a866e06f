package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driving"
	"github.com/custodia-labs/corpus/internal/logger"
)

// Scheduler runs background work while the server is up: periodic sync
// runs and rate-limit flushes. It has no external control API.
type Scheduler struct {
	settings *SettingsService
	syncOrch driving.SyncOrchestrator
	limiter  *RateLimiter

	// syncEvery and flushEvery override the configured intervals when set.
	syncEvery  time.Duration
	flushEvery time.Duration

	mu      sync.Mutex
	running bool
	syncing bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. syncOrch and limiter are optional.
func NewScheduler(settings *SettingsService, syncOrch driving.SyncOrchestrator, limiter *RateLimiter) *Scheduler {
	return &Scheduler{
		settings: settings,
		syncOrch: syncOrch,
		limiter:  limiter,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	return s.run(ctx, stopCh)
}

// Stop shuts the loop down and waits for a sync in flight.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) intervals() (syncEvery, flushEvery time.Duration) {
	cfg := s.settings.Snapshot()
	syncEvery, flushEvery = cfg.Sync.Interval, cfg.RateLimits.FlushInterval
	if s.syncEvery > 0 {
		syncEvery = s.syncEvery
	}
	if s.flushEvery > 0 {
		flushEvery = s.flushEvery
	}
	return syncEvery, flushEvery
}

// run is the main scheduler loop. A nil channel never fires, so a
// disabled task simply has no ticker.
func (s *Scheduler) run(ctx context.Context, stopCh chan struct{}) error {
	syncEvery, flushEvery := s.intervals()

	var syncC, flushC <-chan time.Time
	if s.syncOrch != nil && syncEvery > 0 {
		ticker := time.NewTicker(syncEvery)
		defer ticker.Stop()
		syncC = ticker.C
		logger.Info("scheduler: sync every %s", syncEvery)
	}
	if s.limiter != nil && flushEvery > 0 {
		ticker := time.NewTicker(flushEvery)
		defer ticker.Stop()
		flushC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-syncC:
			s.runSync(ctx)
		case <-flushC:
			if err := s.limiter.Flush(ctx); err != nil {
				logger.Warn("scheduler: rate limit flush failed: %v", err)
			}
		}
	}
}

// runSync starts a sync run unless the previous one is still going.
func (s *Scheduler) runSync(ctx context.Context) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		logger.Debug("scheduler: previous sync still running, skipping tick")
		return
	}
	s.syncing = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.syncing = false
			s.mu.Unlock()
		}()

		report, err := s.syncOrch.Sync(ctx, domain.TriggerSchedule)
		if err != nil {
			logger.Error("scheduler: sync failed: %v", err)
			return
		}
		if len(report.Details) > 0 {
			logger.Info("scheduler: sync processed %d, skipped %d, failed %d",
				report.Processed, report.SkippedDuplicates, report.Failed)
		}
	}()
}
