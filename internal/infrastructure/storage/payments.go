package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

const paymentColumns = `id, bill_id, payment_date, paid_on, description, amount_raw, amount, content_hash,
	attribution_status, payee_id, attribution_method, card_last_four, attributed_at, pending_until,
	manual_bill_lock, manual_order, first_seen, last_seen, scrape_count`

// GetPaymentByHash looks up a payment by content hash
func (s *Storage) GetPaymentByHash(ctx context.Context, hash string) (*ledger.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE content_hash = ?`, hash)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment hash %s: %w", hash, ErrNotFound)
	}
	return p, err
}

// GetPayment retrieves a payment by ID
func (s *Storage) GetPayment(ctx context.Context, id int64) (*ledger.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	return p, err
}

// InsertPayment stores a new payment and sets its ID
func (s *Storage) InsertPayment(ctx context.Context, p *ledger.Payment) error {
	query := `
	INSERT INTO payments
	(bill_id, payment_date, paid_on, description, amount_raw, amount, content_hash,
	 attribution_status, payee_id, attribution_method, card_last_four, attributed_at, pending_until,
	 manual_bill_lock, manual_order, first_seen, last_seen, scrape_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	status := p.Attribution.Status
	if status == "" {
		status = ledger.StatusPending
	}
	scrapeCount := p.ScrapeCount
	if scrapeCount == 0 {
		scrapeCount = 1
	}

	var manualOrder sql.NullInt64
	if p.ManualOrder != nil {
		manualOrder = sql.NullInt64{Int64: int64(*p.ManualOrder), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, query,
		nullInt(p.BillID),
		p.Date,
		p.PaidOn,
		p.Description,
		p.AmountRaw,
		nullFloat(p.Amount),
		p.Hash,
		string(status),
		nullInt(p.Attribution.PayeeID),
		string(p.Attribution.Method),
		p.Attribution.CardLastFour,
		nullTime(p.Attribution.AttributedAt),
		nullTime(p.PendingUntil),
		p.ManualBillLock,
		manualOrder,
		p.FirstSeen.UTC(),
		p.LastSeen.UTC(),
		scrapeCount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment hash %s: %w", p.Hash, ErrConflict)
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	p.Attribution.Status = status
	p.ScrapeCount = scrapeCount
	return nil
}

// TouchPayment records a re-sighting
func (s *Storage) TouchPayment(ctx context.Context, id int64, seenAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET last_seen = ?, scrape_count = scrape_count + 1 WHERE id = ?`,
		seenAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch payment %d: %w", id, err)
	}
	return requireAffected(res, "payment", id)
}

// AssignPaymentBill sets the automatic bill assignment unless the payment is locked
func (s *Storage) AssignPaymentBill(ctx context.Context, id int64, billID *int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET bill_id = ? WHERE id = ? AND manual_bill_lock = 0`,
		nullInt(billID), id)
	if err != nil {
		return false, fmt.Errorf("assign payment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetPaymentBillManual assigns a bill and sets the manual lock
func (s *Storage) SetPaymentBillManual(ctx context.Context, id int64, billID *int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET bill_id = ?, manual_bill_lock = 1 WHERE id = ?`,
		nullInt(billID), id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("bill %v: %w", billID, ErrNotFound)
		}
		return fmt.Errorf("reassign payment %d: %w", id, err)
	}
	return requireAffected(res, "payment", id)
}

// ClearManualLock returns a payment to automatic assignment
func (s *Storage) ClearManualLock(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET manual_bill_lock = 0, manual_order = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("unlock payment %d: %w", id, err)
	}
	return requireAffected(res, "payment", id)
}

// SetPaymentOrder stores the given order for payments on billID. Every
// payment must already belong to the bill; ordering also locks it there.
func (s *Storage) SetPaymentOrder(ctx context.Context, billID int64, paymentIDs []int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, id := range paymentIDs {
			res, err := tx.ExecContext(ctx,
				`UPDATE payments SET manual_order = ?, manual_bill_lock = 1 WHERE id = ? AND bill_id = ?`,
				i+1, id, billID)
			if err != nil {
				return fmt.Errorf("order payment %d: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("payment %d on bill %d: %w", id, billID, ErrNotFound)
			}
		}
		return nil
	})
}

// UpdateAttribution writes attribution state, optionally guarded by the
// current status
func (s *Storage) UpdateAttribution(ctx context.Context, id int64, attr ledger.Attribution, onlyIf ...ledger.AttributionStatus) (bool, error) {
	query := `
	UPDATE payments
	SET attribution_status = ?, payee_id = ?, attribution_method = ?, card_last_four = ?, attributed_at = ?
	WHERE id = ?`
	args := []any{
		string(attr.Status),
		nullInt(attr.PayeeID),
		string(attr.Method),
		attr.CardLastFour,
		nullTime(attr.AttributedAt),
		id,
	}

	if len(onlyIf) > 0 {
		query += ` AND attribution_status IN (` + placeholders(len(onlyIf)) + `)`
		for _, st := range onlyIf {
			args = append(args, string(st))
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, fmt.Errorf("payee %v: %w", attr.PayeeID, ErrNotFound)
		}
		return false, fmt.Errorf("update attribution for payment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 && len(onlyIf) == 0 {
		return false, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	return n > 0, nil
}

// ListPayments returns payments matching filter, ordered by bill then
// display order
func (s *Storage) ListPayments(ctx context.Context, filter PaymentFilter) ([]*ledger.Payment, error) {
	return listPayments(ctx, s.db, filter)
}

func listPayments(ctx context.Context, q querier, filter PaymentFilter) ([]*ledger.Payment, error) {
	var where []string
	var args []any

	if filter.BillID != nil {
		where = append(where, "bill_id = ?")
		args = append(args, *filter.BillID)
	}
	if filter.PayeeID != nil {
		where = append(where, "payee_id = ?")
		args = append(args, *filter.PayeeID)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "attribution_status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.OrphansOnly {
		where = append(where, "bill_id IS NULL")
	}
	if filter.Unattributed {
		where = append(where, "payee_id IS NULL")
	}
	if filter.PendingExpired != nil {
		where = append(where, "pending_until IS NOT NULL AND pending_until < ?")
		args = append(args, filter.PendingExpired.UTC())
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY bill_id IS NULL, bill_id, manual_order IS NULL, manual_order, first_seen, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	payments := make([]*ledger.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row scanner) (*ledger.Payment, error) {
	var p ledger.Payment
	var (
		billID, payeeID, manualOrder sql.NullInt64
		amount                       sql.NullFloat64
		attributedAt, pendingUntil   sql.NullTime
		status, method               string
	)

	if err := row.Scan(
		&p.ID,
		&billID,
		&p.Date,
		&p.PaidOn,
		&p.Description,
		&p.AmountRaw,
		&amount,
		&p.Hash,
		&status,
		&payeeID,
		&method,
		&p.Attribution.CardLastFour,
		&attributedAt,
		&pendingUntil,
		&p.ManualBillLock,
		&manualOrder,
		&p.FirstSeen,
		&p.LastSeen,
		&p.ScrapeCount,
	); err != nil {
		return nil, err
	}

	p.BillID = intPtr(billID)
	p.Amount = floatPtr(amount)
	p.Attribution.Status = ledger.AttributionStatus(status)
	p.Attribution.PayeeID = intPtr(payeeID)
	p.Attribution.Method = ledger.AttributionMethod(method)
	p.Attribution.AttributedAt = timePtr(attributedAt)
	p.PendingUntil = timePtr(pendingUntil)
	if manualOrder.Valid {
		order := int(manualOrder.Int64)
		p.ManualOrder = &order
	}
	return &p, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
