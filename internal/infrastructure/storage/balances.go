package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

// LatestBalance returns the most recently recorded balance
func (s *Storage) LatestBalance(ctx context.Context) (*ledger.BalanceSnapshot, error) {
	var b ledger.BalanceSnapshot
	var balance sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, balance_raw, balance, changed, recorded_at
		FROM balance_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&b.ID, &b.BalanceRaw, &balance, &b.Changed, &b.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("balance: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b.Balance = floatPtr(balance)
	return &b, nil
}

// RecordBalance appends a balance snapshot. Change detection is the caller's job.
func (s *Storage) RecordBalance(ctx context.Context, b *ledger.BalanceSnapshot) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO balance_snapshots (balance_raw, balance, changed, recorded_at) VALUES (?, ?, ?, ?)`,
		b.BalanceRaw, nullFloat(b.Balance), b.Changed, b.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("record balance: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return err
}
