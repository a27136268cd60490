package cli

import (
	"log/slog"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
	"github.com/eshaffer321/utility-ledger/internal/application/ingest"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
	"github.com/eshaffer321/utility-ledger/internal/domain/matcher"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/config"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// App is the fully wired application shared by every subcommand
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Store       storage.Repository
	Ledger      *service.LedgerService
	Sync        *service.SyncService
	Attribution *attribution.Service
	Scheduler   *service.Scheduler

	now func() time.Time
}

// NewApp opens the database and builds the services from cfg.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.NewStorageWithLogger(cfg.Storage.DatabasePath, logging.WithSystem(logger, "storage"))
	if err != nil {
		return nil, err
	}
	return NewAppWithStore(cfg, store, logger), nil
}

// NewAppWithStore builds the services over an already open repository.
func NewAppWithStore(cfg *config.Config, store storage.Repository, logger *slog.Logger) *App {
	logger = logging.OrDefault(logger)

	engine := ingest.NewEngine(store, ingest.Config{
		PendingWindow: cfg.Attribution.PendingWindow,
	}, logging.WithSystem(logger, "ingest"))

	syncs := service.NewSyncService(engine, store, logging.WithSystem(logger, "sync"))

	attr := attribution.NewService(store, matcher.Config{
		AmountTolerance: cfg.Attribution.AmountTolerance,
		DateTolerance:   cfg.Attribution.DateToleranceDays,
	}, logging.WithSystem(logger, "attribution"))

	var source service.SnapshotSource
	if cfg.Scheduler.SnapshotPath != "" {
		source = service.NewFileSource(cfg.Scheduler.SnapshotPath)
	}
	sched := service.NewScheduler(syncs, source, attr, service.SchedulerConfig{
		ResyncInterval: cfg.Scheduler.ResyncInterval,
		SweepInterval:  cfg.Scheduler.SweepInterval,
	}, logging.WithSystem(logger, "scheduler"))

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Ledger:      service.NewLedgerService(store, logging.WithSystem(logger, "ledger")).UseSyncLock(syncs),
		Sync:        syncs,
		Attribution: attr,
		Scheduler:   sched,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Close releases the database
func (a *App) Close() error {
	return a.Store.Close()
}
