package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
)

// Ingest runs one sync over the snapshot file at path and prints the
// outcome.
func Ingest(ctx context.Context, app *App, path string, out io.Writer) error {
	if path == "" {
		path = app.Config.Scheduler.SnapshotPath
	}
	if path == "" {
		return errors.New("no snapshot file given and scheduler.snapshot_path is not set")
	}

	snap, err := service.ReadSnapshotFile(path)
	if err != nil {
		return err
	}

	outcome, err := app.Sync.Sync(ctx, service.SourceCLI, snap)
	if err != nil {
		return err
	}
	PrintIngestSummary(out, path, outcome)
	return nil
}

// Sweep attributes every expired pending payment to the default payee.
func Sweep(ctx context.Context, app *App, out io.Writer) error {
	result, err := app.Attribution.SweepExpired(ctx, app.now())
	if err != nil && !errors.Is(err, attribution.ErrNoDefaultPayee) {
		return err
	}
	PrintSweepResult(out, result, err)
	return nil
}

// Summary prints the per-bill payee breakdown and running balances.
func Summary(ctx context.Context, app *App, out io.Writer) error {
	report, err := app.Ledger.Summary(ctx)
	if err != nil {
		return err
	}
	PrintReport(out, report)
	return nil
}

// withApp loads config, opens the app and runs fn against it.
func withApp(flags GlobalFlags, system string, fn func(ctx context.Context, app *App) error) error {
	cfg, err := flags.LoadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, system)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() { _ = app.Close() }()

	return fn(context.Background(), app)
}
