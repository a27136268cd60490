// Package ingest folds ledger snapshots into the store.
//
// A run is two passes over the snapshot. The first upserts every bill. The
// second hashes every payment, resolves it against the complete bill set
// (including bills earlier snapshots delivered but this one omits) and
// inserts or refreshes it. Replaying the same snapshot only bumps
// last_seen and scrape_count.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/assigner"
	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/domain/money"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// Engine runs the ingestion process
type Engine struct {
	store         Store
	pendingWindow time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

var _ Ingester = (*Engine)(nil)

// NewEngine creates a new ingestion engine
func NewEngine(store Store, cfg Config, logger *slog.Logger) *Engine {
	window := cfg.PendingWindow
	if window <= 0 {
		window = DefaultPendingWindow
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store:         store,
		pendingWindow: window,
		now:           now,
		logger:        logging.OrDefault(logger),
	}
}

type classified struct {
	bills    []*ledger.BillEntry
	payments []*ledger.PaymentEntry
}

// Run ingests one snapshot. Malformed entries are skipped and counted.
// Storage errors abort the run; the partial result is returned with the
// error and the run is safe to repeat.
func (e *Engine) Run(ctx context.Context, snap ledger.Snapshot) (*Result, error) {
	result := newResult()
	result.EntriesTotal = len(snap.Ledger)
	seenAt := e.now()

	e.logger.Info("ingest started", "entries", len(snap.Ledger))

	changed, err := e.recordBalance(ctx, snap.AccountBalance, seenAt)
	if err != nil {
		return result, err
	}
	result.BalanceChanged = changed
	result.Balance = strings.TrimSpace(snap.AccountBalance)

	entries := e.classify(snap.Ledger, result)

	// Pass 1: bills
	for _, b := range entries.bills {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("ingest cancelled: %w", err)
		}
		if err := e.upsertBill(ctx, b, seenAt, result); err != nil {
			return result, err
		}
	}

	resolver, err := e.loadResolver(ctx)
	if err != nil {
		return result, err
	}

	// Pass 2: payments
	occurrences := ledger.NewOccurrenceCounter()
	for _, p := range entries.payments {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("ingest cancelled: %w", err)
		}
		hash := ledger.PaymentHash(p, occurrences.Next(p))
		if err := e.upsertPayment(ctx, p, hash, resolver, seenAt, result); err != nil {
			return result, err
		}
	}

	e.logger.Info("ingest completed",
		"bills_created", result.BillsCreated,
		"bills_updated", result.BillsUpdated,
		"payments_created", result.PaymentsCreated,
		"payments_updated", result.PaymentsUpdated,
		"payments_reassigned", result.PaymentsReassigned,
		"orphans", result.Orphans,
		"skipped", result.SkippedCount(),
		"balance_changed", result.BalanceChanged,
	)

	return result, nil
}

func (e *Engine) classify(raw []ledger.Entry, result *Result) classified {
	var out classified
	for i, entry := range raw {
		bill, payment, err := entry.Classify(i)
		if err != nil {
			var skipped *ledger.SkippedEntryError
			if errors.As(err, &skipped) {
				result.skip(skipped)
			}
			e.logger.Warn("skipping ledger entry", "index", i, "error", err)
			continue
		}
		if bill != nil {
			out.bills = append(out.bills, bill)
		} else {
			out.payments = append(out.payments, payment)
		}
	}
	return out
}

// recordBalance appends a balance snapshot when the trimmed raw balance
// differs from the latest one. An empty balance is ignored.
func (e *Engine) recordBalance(ctx context.Context, raw string, seenAt time.Time) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}

	latest, err := e.store.LatestBalance(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("failed to load latest balance: %w", err)
	case strings.TrimSpace(latest.BalanceRaw) == raw:
		return false, nil
	}

	snapshot := &ledger.BalanceSnapshot{
		BalanceRaw: raw,
		Balance:    money.Parse(raw),
		Changed:    latest != nil,
		RecordedAt: seenAt,
	}
	if err := e.store.RecordBalance(ctx, snapshot); err != nil {
		return false, fmt.Errorf("failed to record balance: %w", err)
	}

	previous := ""
	if latest != nil {
		previous = latest.BalanceRaw
	}
	e.logger.Info("account balance changed", "previous", previous, "current", raw)
	return true, nil
}

func (e *Engine) upsertBill(ctx context.Context, b *ledger.BillEntry, seenAt time.Time, result *Result) error {
	res, err := e.store.UpsertBill(ctx, storage.BillUpsert{
		CycleDate:  b.CycleDate.Format(ledger.DateLayout),
		MonthRange: b.MonthRange,
		IssueDate:  b.IssueDate,
		TotalRaw:   b.TotalRaw,
		Total:      b.Total,
		SeenAt:     seenAt,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert bill: %w", err)
	}

	if res.Created {
		result.BillsCreated++
		e.logger.Debug("bill created", "bill_id", res.Bill.ID, "cycle_date", res.Bill.CycleDate, "total", res.Bill.TotalRaw)
	} else {
		result.BillsUpdated++
	}
	if b.TotalRaw != "" && b.Total == nil {
		e.logger.Warn("bill total is not a number", "bill_id", res.Bill.ID, "total", b.TotalRaw)
	}
	return nil
}

// loadResolver builds the resolver from every stored bill
func (e *Engine) loadResolver(ctx context.Context) (*assigner.Resolver, error) {
	bills, err := e.store.ListBills(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}
	refs := make([]assigner.BillRef, 0, len(bills))
	for _, b := range bills {
		refs = append(refs, assigner.BillRef{ID: b.ID, CycleDate: b.CycleTime()})
	}
	return assigner.NewResolver(refs), nil
}

func (e *Engine) upsertPayment(
	ctx context.Context,
	p *ledger.PaymentEntry,
	hash string,
	resolver *assigner.Resolver,
	seenAt time.Time,
	result *Result,
) error {
	var billID *int64
	if id, ok := resolver.Resolve(p.Date); ok {
		billID = &id
	}

	existing, err := e.store.GetPaymentByHash(ctx, hash)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to look up payment: %w", err)
	}

	if existing == nil {
		return e.insertPayment(ctx, p, hash, billID, seenAt, result)
	}

	if err := e.store.TouchPayment(ctx, existing.ID, seenAt); err != nil {
		return fmt.Errorf("failed to touch payment %d: %w", existing.ID, err)
	}
	result.PaymentsUpdated++

	if existing.ManualBillLock {
		result.PaymentsLocked++
		if existing.BillID == nil {
			result.Orphans++
		}
		return nil
	}

	if !sameBill(existing.BillID, billID) {
		changed, err := e.store.AssignPaymentBill(ctx, existing.ID, billID)
		if err != nil {
			return fmt.Errorf("failed to reassign payment %d: %w", existing.ID, err)
		}
		if changed {
			result.PaymentsReassigned++
			e.logger.Info("payment reassigned",
				"payment_id", existing.ID,
				"from_bill", billLabel(existing.BillID),
				"to_bill", billLabel(billID),
			)
		}
	}
	if billID == nil {
		result.Orphans++
	}
	return nil
}

func (e *Engine) insertPayment(
	ctx context.Context,
	p *ledger.PaymentEntry,
	hash string,
	billID *int64,
	seenAt time.Time,
	result *Result,
) error {
	pendingUntil := seenAt.Add(e.pendingWindow)
	payment := &ledger.Payment{
		BillID:       billID,
		Date:         p.Date.Format(ledger.DateLayout),
		PaidOn:       p.PaidOn,
		Description:  p.Description,
		AmountRaw:    p.AmountRaw,
		Amount:       p.Amount,
		Hash:         hash,
		Attribution:  ledger.Attribution{Status: ledger.StatusPending},
		PendingUntil: &pendingUntil,
		FirstSeen:    seenAt,
		LastSeen:     seenAt,
		ScrapeCount:  1,
	}
	if err := e.store.InsertPayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	result.PaymentsCreated++
	if billID == nil {
		result.Orphans++
		e.logger.Warn("payment has no bill", "payment_id", payment.ID, "date", payment.Date)
	}
	if p.AmountRaw != "" && p.Amount == nil {
		e.logger.Warn("payment amount is not a number", "payment_id", payment.ID, "amount", p.AmountRaw)
	}
	e.logger.Debug("payment created",
		"payment_id", payment.ID,
		"bill_id", billLabel(billID),
		"amount", p.AmountRaw,
	)
	return nil
}

func sameBill(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func billLabel(id *int64) any {
	if id == nil {
		return "orphan"
	}
	return *id
}
