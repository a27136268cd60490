package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

const billColumns = `id, cycle_date, month_range, issue_date, total_raw, total, first_seen, last_seen, scrape_count`

// UpsertBill inserts a bill or, when (cycle_date, month_range) already
// exists, refreshes its total and issue date and bumps the scrape counter.
// Empty incoming values never overwrite stored ones.
func (s *Storage) UpsertBill(ctx context.Context, in BillUpsert) (*BillUpsertResult, error) {
	query := `
	INSERT INTO bills (cycle_date, month_range, issue_date, total_raw, total, first_seen, last_seen, scrape_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	ON CONFLICT (cycle_date, month_range) DO UPDATE SET
		issue_date   = CASE WHEN excluded.issue_date != '' THEN excluded.issue_date ELSE bills.issue_date END,
		total        = CASE WHEN excluded.total_raw != '' THEN excluded.total ELSE bills.total END,
		total_raw    = CASE WHEN excluded.total_raw != '' THEN excluded.total_raw ELSE bills.total_raw END,
		last_seen    = excluded.last_seen,
		scrape_count = bills.scrape_count + 1
	RETURNING id, scrape_count
	`

	seen := in.SeenAt.UTC()
	var id int64
	var scrapeCount int
	err := s.db.QueryRowContext(ctx, query,
		in.CycleDate,
		strings.TrimSpace(in.MonthRange),
		in.IssueDate,
		in.TotalRaw,
		nullFloat(in.Total),
		seen,
		seen,
	).Scan(&id, &scrapeCount)
	if err != nil {
		return nil, fmt.Errorf("upsert bill %s: %w", in.CycleDate, err)
	}

	bill, err := s.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BillUpsertResult{Bill: bill, Created: scrapeCount == 1}, nil
}

// GetBill retrieves a bill by ID
func (s *Storage) GetBill(ctx context.Context, id int64) (*ledger.Bill, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, id)
	bill, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bill %d: %w", id, ErrNotFound)
	}
	return bill, err
}

// ListBills returns all bills, oldest cycle first
func (s *Storage) ListBills(ctx context.Context) ([]*ledger.Bill, error) {
	return listBills(ctx, s.db)
}

func listBills(ctx context.Context, q querier) ([]*ledger.Bill, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+billColumns+` FROM bills ORDER BY cycle_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bills := make([]*ledger.Bill, 0)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBill(row scanner) (*ledger.Bill, error) {
	var b ledger.Bill
	var total sql.NullFloat64
	if err := row.Scan(
		&b.ID,
		&b.CycleDate,
		&b.MonthRange,
		&b.IssueDate,
		&b.TotalRaw,
		&total,
		&b.FirstSeen,
		&b.LastSeen,
		&b.ScrapeCount,
	); err != nil {
		return nil, err
	}
	b.Total = floatPtr(total)
	return &b, nil
}
