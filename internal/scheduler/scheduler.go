// Package scheduler runs Trans-Hub's two background sweeps: garbage
// collection of stale content/jobs and recovery of translations
// abandoned mid-claim (spec §4.2's maintenance responsibilities).
package scheduler

import (
	"context"
	"sync"
	"time"

	"transhub/internal/logger"
	"transhub/internal/repository"
)

// GarbageCollector is the slice of the Coordinator the scheduler needs
// for its periodic sweep.
type GarbageCollector interface {
	RunGarbageCollection(ctx context.Context, retentionDays int, dryRun bool) (repository.GCCounts, error)
}

// StaleClaimRecoverer is the slice of the Persistence Handler the
// scheduler needs to reclaim abandoned TRANSLATING rows.
type StaleClaimRecoverer interface {
	RecoverStaleClaims(ctx context.Context, threshold time.Duration) (int, error)
}

type Scheduler struct {
	gc              GarbageCollector
	recoverer       StaleClaimRecoverer
	interval        time.Duration
	retentionDays   int
	staleThreshold  time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
	cancelFunc      context.CancelFunc
	mu              sync.Mutex
}

// New builds a Scheduler that runs both sweeps every interval.
func New(gc GarbageCollector, recoverer StaleClaimRecoverer, interval time.Duration, retentionDays int, staleThreshold time.Duration) *Scheduler {
	return &Scheduler{
		gc:             gc,
		recoverer:      recoverer,
		interval:       interval,
		retentionDays:  retentionDays,
		staleThreshold: staleThreshold,
		stopCh:         make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	logger.Info("scheduler started", "module", "scheduler", "action", "sweep", "resource", "maintenance", "result", "ok", "interval_ms", s.interval.Milliseconds())
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	logger.Info("scheduler stopped", "module", "scheduler", "action", "sweep", "resource", "maintenance", "result", "ok")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)

	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancelFunc = nil
		s.mu.Unlock()
	}()

	logger.Info("scheduled maintenance sweep started", "module", "scheduler", "action", "sweep", "resource", "maintenance", "result", "ok")

	recovered, err := s.recoverer.RecoverStaleClaims(ctx, s.staleThreshold)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("scheduled maintenance sweep cancelled", "module", "scheduler", "action", "recover_stale_claims", "resource", "translation", "result", "cancelled")
			return
		}
		logger.Error("stale claim recovery failed", "module", "scheduler", "action", "recover_stale_claims", "resource", "translation", "result", "failed", "error", err)
	} else if recovered > 0 {
		logger.Info("stale claims recovered", "module", "scheduler", "action", "recover_stale_claims", "resource", "translation", "result", "ok", "count", recovered)
	}

	counts, err := s.gc.RunGarbageCollection(ctx, s.retentionDays, false)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("scheduled maintenance sweep cancelled", "module", "scheduler", "action", "garbage_collect", "resource", "content", "result", "cancelled")
			return
		}
		logger.Error("scheduled garbage collection failed", "module", "scheduler", "action", "garbage_collect", "resource", "content", "result", "failed", "error", err)
		return
	}

	logger.Info("scheduled maintenance sweep completed", "module", "scheduler", "action", "sweep", "resource", "maintenance", "result", "ok",
		"deleted_jobs", counts.DeletedJobs, "deleted_content", counts.DeletedContent, "deleted_translations", counts.DeletedTranslations)
}
