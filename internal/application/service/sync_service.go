package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/utility-ledger/internal/application/ingest"
	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// ErrSyncInProgress is returned when a sync is triggered while another one
// is still running. The trigger is dropped, not queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// Sync sources recorded on each run
const (
	SourceAPI       = "api"
	SourceScheduler = "scheduler"
	SourceCLI       = "cli"
)

// SyncOutcome is what a completed sync reports back
type SyncOutcome struct {
	RunID    string         `json:"run_id"`
	Source   string         `json:"source"`
	Duration time.Duration  `json:"duration_ns"`
	Result   *ingest.Result `json:"result"`
}

// SyncService runs ingestion, one sync at a time, and records every run.
type SyncService struct {
	engine ingest.Ingester
	runs   storage.SyncRunRepository
	logger *slog.Logger

	// only one sync at a time
	lock sync.Mutex

	stateMu sync.RWMutex
	current *storage.SyncRun
	last    *storage.SyncRun

	// onComplete is called after every successful run
	onComplete func()
}

// NewSyncService creates a new sync service.
func NewSyncService(engine ingest.Ingester, runs storage.SyncRunRepository, logger *slog.Logger) *SyncService {
	return &SyncService{
		engine: engine,
		runs:   runs,
		logger: logging.OrDefault(logger),
	}
}

// Exclusive runs fn while holding the sync lock. It returns
// ErrSyncInProgress without calling fn if a sync is running.
func (s *SyncService) Exclusive(fn func() error) error {
	if !s.lock.TryLock() {
		return ErrSyncInProgress
	}
	defer s.lock.Unlock()
	return fn()
}

// OnComplete registers a callback run after each successful sync
func (s *SyncService) OnComplete(fn func()) {
	s.onComplete = fn
}

// Sync ingests snap. If another sync is running it returns
// ErrSyncInProgress immediately.
func (s *SyncService) Sync(ctx context.Context, source string, snap ledger.Snapshot) (*SyncOutcome, error) {
	if !s.lock.TryLock() {
		s.logger.Warn("sync trigger dropped, another sync is running", "source", source)
		return nil, ErrSyncInProgress
	}
	defer s.lock.Unlock()

	runID := uuid.NewString()
	started := time.Now().UTC()

	run := &storage.SyncRun{ID: runID, Source: source, Status: storage.SyncRunRunning, StartedAt: started}
	s.setCurrent(run)
	defer s.setCurrent(nil)

	if err := s.runs.StartSyncRun(ctx, runID, source); err != nil {
		return nil, fmt.Errorf("failed to record sync run: %w", err)
	}

	s.logger.Info("sync job started", "job_id", runID, "source", source, "entries", len(snap.Ledger))

	result, runErr := s.engine.Run(ctx, snap)
	fillRun(run, result)

	completed := time.Now().UTC()
	run.CompletedAt = &completed
	if runErr != nil {
		run.Status = storage.SyncRunFailed
		run.ErrorMessage = runErr.Error()
	} else {
		run.Status = storage.SyncRunCompleted
	}

	// record the outcome even if the caller's context was cancelled
	if err := s.runs.CompleteSyncRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to record sync run outcome", "job_id", runID, "error", err)
	}
	s.setLast(run)

	if runErr != nil {
		s.logger.Error("sync job failed", "job_id", runID, "error", runErr)
		return nil, runErr
	}

	s.logger.Info("sync job completed",
		"job_id", runID,
		"duration", completed.Sub(started).Round(time.Millisecond),
		"bills_created", run.BillsCreated,
		"payments_created", run.PaymentsCreated,
		"skipped", run.Skipped,
	)

	if s.onComplete != nil {
		s.onComplete()
	}

	return &SyncOutcome{
		RunID:    runID,
		Source:   source,
		Duration: completed.Sub(started),
		Result:   result,
	}, nil
}

// IsSyncing reports whether a sync is running right now
func (s *SyncService) IsSyncing() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.current != nil
}

// CurrentRun returns the in-flight run, or nil
func (s *SyncService) CurrentRun() *storage.SyncRun {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.current == nil {
		return nil
	}
	run := *s.current
	return &run
}

// LastRun returns the most recently finished run in this process, or nil
func (s *SyncService) LastRun() *storage.SyncRun {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.last == nil {
		return nil
	}
	run := *s.last
	return &run
}

// ListRuns returns recorded runs, newest first
func (s *SyncService) ListRuns(ctx context.Context, limit int) ([]*storage.SyncRun, error) {
	return s.runs.ListSyncRuns(ctx, limit)
}

// GetRun returns one recorded run
func (s *SyncService) GetRun(ctx context.Context, runID string) (*storage.SyncRun, error) {
	return s.runs.GetSyncRun(ctx, runID)
}

func (s *SyncService) setCurrent(run *storage.SyncRun) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if run == nil {
		s.current = nil
		return
	}
	copied := *run
	s.current = &copied
}

func (s *SyncService) setLast(run *storage.SyncRun) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	copied := *run
	s.last = &copied
}

func fillRun(run *storage.SyncRun, result *ingest.Result) {
	if result == nil {
		return
	}
	run.EntriesTotal = result.EntriesTotal
	run.BillsCreated = result.BillsCreated
	run.BillsUpdated = result.BillsUpdated
	run.PaymentsCreated = result.PaymentsCreated
	run.PaymentsUpdated = result.PaymentsUpdated
	run.PaymentsReassigned = result.PaymentsReassigned
	run.Orphans = result.Orphans
	run.Skipped = result.SkippedCount()
	run.BalanceChanged = result.BalanceChanged
}
