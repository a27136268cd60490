package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/api"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
)

// shutdownTimeout bounds how long in-flight requests and the current
// scheduler cycle get to finish
const shutdownTimeout = 30 * time.Second

// RunServe runs the API server, and the scheduler when enabled, until
// SIGINT or SIGTERM.
func RunServe(flags *ServeFlags) error {
	cfg, err := flags.LoadConfig()
	if err != nil {
		return err
	}
	if flags.Port > 0 {
		cfg.Server.Port = flags.Port
	}
	if flags.Schedule {
		cfg.Scheduler.Enabled = true
	}

	logger := logging.NewLogger(cfg.Observability.Logging)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, app)
}

// Serve runs the API and scheduler for app until ctx is done, then shuts
// both down.
func Serve(ctx context.Context, app *App) error {
	logger := logging.WithSystem(app.Logger, "api")
	server := api.NewServer(api.Config{
		Port:           app.Config.Server.Port,
		AllowedOrigins: app.Config.Server.AllowedOrigins,
	}, api.Services{
		Ledger:      app.Ledger,
		Sync:        app.Sync,
		Attribution: app.Attribution,
		Scheduler:   app.Scheduler,
	}, logger)

	if app.Config.Scheduler.Enabled {
		if err := app.Scheduler.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		stopScheduler(app, logger)
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}
	stopScheduler(app, logger)

	if err := <-errCh; err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func stopScheduler(app *App, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Scheduler.Stop(ctx); err != nil {
		logger.Error("scheduler shutdown error", slog.Any("error", err))
	}
}
