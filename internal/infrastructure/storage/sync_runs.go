package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const syncRunColumns = `id, source, status, started_at, completed_at, entries_total, bills_created, bills_updated,
	payments_created, payments_updated, payments_reassigned, orphans, skipped, balance_changed, error_message`

// StartSyncRun records the start of a sync run
func (s *Storage) StartSyncRun(ctx context.Context, runID, source string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		runID, source, SyncRunRunning, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("start sync run: %w", err)
	}
	return nil
}

// CompleteSyncRun records the outcome of a sync run
func (s *Storage) CompleteSyncRun(ctx context.Context, run *SyncRun) error {
	completed := time.Now().UTC()
	if run.CompletedAt != nil {
		completed = run.CompletedAt.UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = ?, completed_at = ?, entries_total = ?, bills_created = ?, bills_updated = ?,
		    payments_created = ?, payments_updated = ?, payments_reassigned = ?, orphans = ?,
		    skipped = ?, balance_changed = ?, error_message = ?
		WHERE id = ?`,
		run.Status, completed, run.EntriesTotal, run.BillsCreated, run.BillsUpdated,
		run.PaymentsCreated, run.PaymentsUpdated, run.PaymentsReassigned, run.Orphans,
		run.Skipped, run.BalanceChanged, run.ErrorMessage,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("complete sync run: %w", err)
	}
	return requireAffected(res, "sync run", run.ID)
}

// ListSyncRuns returns recent sync runs, newest first
func (s *Storage) ListSyncRuns(ctx context.Context, limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*SyncRun, 0)
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetSyncRun retrieves a sync run by ID
func (s *Storage) GetSyncRun(ctx context.Context, runID string) (*SyncRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+syncRunColumns+` FROM sync_runs WHERE id = ?`, runID)
	run, err := scanSyncRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

func scanSyncRun(row scanner) (*SyncRun, error) {
	var r SyncRun
	var completed sql.NullTime
	if err := row.Scan(
		&r.ID, &r.Source, &r.Status, &r.StartedAt, &completed,
		&r.EntriesTotal, &r.BillsCreated, &r.BillsUpdated,
		&r.PaymentsCreated, &r.PaymentsUpdated, &r.PaymentsReassigned,
		&r.Orphans, &r.Skipped, &r.BalanceChanged, &r.ErrorMessage,
	); err != nil {
		return nil, err
	}
	r.CompletedAt = timePtr(completed)
	return &r, nil
}
