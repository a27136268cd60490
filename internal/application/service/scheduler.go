package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
)

// SchedulerConfig holds the loop intervals. A zero interval disables that loop.
type SchedulerConfig struct {
	ResyncInterval time.Duration `json:"resync_interval"`
	SweepInterval  time.Duration `json:"sweep_interval"`
}

// Scheduler runs the periodic resync and the pending-attribution sweep
type Scheduler struct {
	syncs       *SyncService
	source      SnapshotSource
	attribution *attribution.Service
	logger      *slog.Logger

	mu     sync.Mutex
	cfg    SchedulerConfig
	cancel context.CancelFunc
	done   chan error
}

// NewScheduler creates a scheduler. source may be nil, which disables resync.
func NewScheduler(syncs *SyncService, source SnapshotSource, attr *attribution.Service, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncs:       syncs,
		source:      source,
		attribution: attr,
		cfg:         cfg,
		logger:      logging.OrDefault(logger),
	}
}

// Start launches both loops. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Scheduler) startLocked(ctx context.Context) error {
	if s.cancel != nil {
		return fmt.Errorf("scheduler is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(loopCtx)

	cfg := s.cfg
	if cfg.ResyncInterval > 0 && s.source != nil && s.syncs != nil {
		g.Go(func() error { return s.resyncLoop(gctx, cfg.ResyncInterval) })
	}
	if cfg.SweepInterval > 0 && s.attribution != nil {
		sweeper := attribution.NewSweeper(s.attribution, cfg.SweepInterval)
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	s.cancel = cancel
	s.done = done

	s.logger.Info("scheduler started",
		"resync_interval", cfg.ResyncInterval,
		"sweep_interval", cfg.SweepInterval,
	)
	return nil
}

// Stop cancels both loops and waits for the current cycle to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

func (s *Scheduler) stopLocked(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case err := <-s.done:
		s.cancel = nil
		s.done = nil
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
		return ctx.Err()
	}
}

// Reconfigure stops the loops, applies cfg and starts them again
func (s *Scheduler) Reconfigure(ctx context.Context, cfg SchedulerConfig) error {
	if cfg.ResyncInterval < 0 || cfg.SweepInterval < 0 {
		return fmt.Errorf("intervals must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wasRunning := s.cancel != nil
	if err := s.stopLocked(ctx); err != nil {
		return err
	}
	s.cfg = cfg
	s.logger.Info("scheduler reconfigured",
		"resync_interval", cfg.ResyncInterval,
		"sweep_interval", cfg.SweepInterval,
	)
	if !wasRunning {
		return nil
	}
	// the loops outlive the request that reconfigured them
	return s.startLocked(context.WithoutCancel(ctx))
}

// Config returns the active intervals
func (s *Scheduler) Config() SchedulerConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// IsRunning returns whether the loops are active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) resyncLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.resyncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.resyncOnce(ctx)
		}
	}
}

func (s *Scheduler) resyncOnce(ctx context.Context) {
	snap, err := s.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("failed to fetch snapshot", "source", s.source.Name(), "error", err)
		}
		return
	}

	// a started sync runs to completion even if the scheduler is stopped
	_, err = s.syncs.Sync(context.WithoutCancel(ctx), SourceScheduler, snap)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Debug("scheduled sync skipped, another sync is running")
	case err != nil:
		s.logger.Error("scheduled sync failed", "error", err)
	}
}
