package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/utility-ledger/internal/application/ingest"
	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// blockingIngester holds Run until release is closed
type blockingIngester struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingIngester() *blockingIngester {
	return &blockingIngester{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingIngester) Run(_ context.Context, snap ledger.Snapshot) (*ingest.Result, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return &ingest.Result{EntriesTotal: len(snap.Ledger), Skipped: map[string]int{}}, nil
}

type failingIngester struct{ err error }

func (f failingIngester) Run(context.Context, ledger.Snapshot) (*ingest.Result, error) {
	return &ingest.Result{EntriesTotal: 3, BillsCreated: 1, Skipped: map[string]int{"missing_type": 1}}, f.err
}

func testSnapshot() ledger.Snapshot {
	return ledger.Snapshot{
		AccountBalance: "$20.00",
		Ledger: []ledger.Entry{
			{Type: "bill", BillCycleDate: "2024-01-15", BillTotal: "$100.00"},
			{Type: "payment", BillCycleDate: "2024-01-20", Amount: "$100.00", Description: "Payment"},
		},
	}
}

func TestSyncService_Sync_RecordsRun(t *testing.T) {
	repo := storage.NewMockRepository()
	engine := ingest.NewEngine(repo, ingest.Config{}, nil)
	svc := NewSyncService(engine, repo, nil)

	completed := 0
	svc.OnComplete(func() { completed++ })

	outcome, err := svc.Sync(context.Background(), SourceAPI, testSnapshot())
	require.NoError(t, err)
	require.NotEmpty(t, outcome.RunID)
	assert.Equal(t, SourceAPI, outcome.Source)
	assert.Equal(t, 1, outcome.Result.BillsCreated)
	assert.Equal(t, 1, outcome.Result.PaymentsCreated)
	assert.Equal(t, 1, completed)

	run, err := svc.GetRun(context.Background(), outcome.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncRunCompleted, run.Status)
	assert.Equal(t, 2, run.EntriesTotal)
	assert.True(t, run.BalanceChanged)
	require.NotNil(t, run.CompletedAt)

	last := svc.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, outcome.RunID, last.ID)
	assert.False(t, svc.IsSyncing())
	assert.Nil(t, svc.CurrentRun())
}

func TestSyncService_Sync_FailureIsRecorded(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := NewSyncService(failingIngester{err: errors.New("database is locked")}, repo, nil)

	_, err := svc.Sync(context.Background(), SourceCLI, testSnapshot())
	require.Error(t, err)

	runs, err := svc.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, storage.SyncRunFailed, runs[0].Status)
	assert.Equal(t, "database is locked", runs[0].ErrorMessage)
	assert.Equal(t, 1, runs[0].BillsCreated, "partial counts are kept")
	assert.Equal(t, 1, runs[0].Skipped)
}

func TestSyncService_Sync_DropsConcurrentTrigger(t *testing.T) {
	repo := storage.NewMockRepository()
	blocker := newBlockingIngester()
	svc := NewSyncService(blocker, repo, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Sync(context.Background(), SourceScheduler, testSnapshot())
		errCh <- err
	}()

	select {
	case <-blocker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first sync never started")
	}
	assert.True(t, svc.IsSyncing())
	require.NotNil(t, svc.CurrentRun())
	assert.Equal(t, SourceScheduler, svc.CurrentRun().Source)

	_, err := svc.Sync(context.Background(), SourceAPI, testSnapshot())
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(blocker.release)
	require.NoError(t, <-errCh)

	runs, err := svc.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "the dropped trigger leaves no run behind")
}

func TestSyncService_Sync_StartRunError(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.StartSyncRunErr = errors.New("read-only")
	svc := NewSyncService(failingIngester{}, repo, nil)

	_, err := svc.Sync(context.Background(), SourceAPI, testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
	assert.False(t, svc.IsSyncing())
}

func TestSyncService_GetRun_NotFound(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := NewSyncService(failingIngester{}, repo, nil)

	_, err := svc.GetRun(context.Background(), "non-existent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
