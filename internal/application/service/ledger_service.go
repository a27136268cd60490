package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/domain/responsibility"
	"github.com/eshaffer321/utility-ledger/internal/domain/validator"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// LedgerView is the full ledger as shown to users
type LedgerView struct {
	Balance *ledger.BalanceSnapshot `json:"balance,omitempty"`
	Bills   []*ledger.Bill          `json:"bills"`
	Orphans []*ledger.Payment       `json:"orphans"`
}

// BillPayments is one bill with its ordered payments and payee breakdown
type BillPayments struct {
	Bill    *ledger.Bill                `json:"bill"`
	Summary *responsibility.BillSummary `json:"summary,omitempty"`
}

// PaymentQuery selects payments for listing
type PaymentQuery struct {
	BillID  *int64
	PayeeID *int64
	Orphans bool
}

// LedgerService answers ledger queries and applies admin changes.
type LedgerService struct {
	repo   storage.Repository
	logger *slog.Logger

	summaries singleflight.Group

	// responsibilities are read, merged and written as one step
	respMu sync.Mutex

	// syncs, when set, keeps a wipe from running under an in-flight sync
	syncs *SyncService
}

// NewLedgerService creates a ledger service
func NewLedgerService(repo storage.Repository, logger *slog.Logger) *LedgerService {
	return &LedgerService{repo: repo, logger: logging.OrDefault(logger)}
}

// UseSyncLock makes destructive admin operations share the sync lock, so
// they fail with ErrSyncInProgress instead of racing a running sync.
func (s *LedgerService) UseSyncLock(syncs *SyncService) *LedgerService {
	s.syncs = syncs
	return s
}

// Ledger returns the current balance, every bill with its payments in
// display order, and the orphan payments.
func (s *LedgerService) Ledger(ctx context.Context) (*LedgerView, error) {
	data, err := s.repo.LedgerSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	view := &LedgerView{Bills: nestPayments(data), Orphans: []*ledger.Payment{}}
	for _, p := range data.Payments {
		if p.IsOrphan() {
			view.Orphans = append(view.Orphans, p)
		}
	}
	ledger.SortPayments(view.Orphans)

	balance, err := s.repo.LatestBalance(ctx)
	switch {
	case err == nil:
		view.Balance = balance
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	return view, nil
}

// BillPayments returns one bill with its payments and computed breakdown
func (s *LedgerService) BillPayments(ctx context.Context, billID int64) (*BillPayments, error) {
	report, data, err := s.summaryWithData(ctx)
	if err != nil {
		return nil, err
	}

	for _, b := range nestPayments(data) {
		if b.ID != billID {
			continue
		}
		out := &BillPayments{Bill: b}
		if summary, ok := report.BillByID(billID); ok {
			out.Summary = summary
		}
		return out, nil
	}
	return nil, fmt.Errorf("bill %d: %w", billID, storage.ErrNotFound)
}

// Payments lists payments by bill, by payee or orphans only
func (s *LedgerService) Payments(ctx context.Context, q PaymentQuery) ([]*ledger.Payment, error) {
	if q.BillID != nil {
		if _, err := s.repo.GetBill(ctx, *q.BillID); err != nil {
			return nil, err
		}
	}
	if q.PayeeID != nil {
		if _, err := s.repo.GetPayee(ctx, *q.PayeeID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListPayments(ctx, storage.PaymentFilter{
		BillID:      q.BillID,
		PayeeID:     q.PayeeID,
		OrphansOnly: q.Orphans,
	})
}

// Unverified returns payments still waiting for a confirmed payee
func (s *LedgerService) Unverified(ctx context.Context) ([]*ledger.Payment, error) {
	return s.repo.ListPayments(ctx, storage.PaymentFilter{
		Statuses: []ledger.AttributionStatus{ledger.StatusPending, ledger.StatusUnverified},
	})
}

// Summary recomputes every bill's payee breakdown and the running
// balances. Concurrent callers share one computation.
func (s *LedgerService) Summary(ctx context.Context) (*responsibility.Report, error) {
	report, _, err := s.summaryWithData(ctx)
	return report, err
}

type summaryResult struct {
	report *responsibility.Report
	data   *storage.LedgerData
}

func (s *LedgerService) summaryWithData(ctx context.Context) (*responsibility.Report, *storage.LedgerData, error) {
	// joined callers must not fail because the first caller went away
	shareCtx := context.WithoutCancel(ctx)
	v, err, shared := s.summaries.Do("summary", func() (any, error) {
		data, err := s.repo.LedgerSnapshot(shareCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger: %w", err)
		}
		report := responsibility.Calculate(responsibility.Input{
			Bills:    data.Bills,
			Payments: data.Payments,
			Payees:   data.Payees,
		})
		for _, w := range report.Warnings {
			s.logger.Warn("summary warning", "warning", w)
		}
		return &summaryResult{report: report, data: data}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if shared {
		s.logger.Debug("summary computation shared")
	}
	res := v.(*summaryResult)
	return res.report, res.data, nil
}

// Wipe deletes every payment and bill. Payees, cards and balance history
// are kept. Returns ErrSyncInProgress while a sync is running.
func (s *LedgerService) Wipe(ctx context.Context) (*storage.WipeResult, error) {
	var result *storage.WipeResult
	wipe := func() error {
		var err error
		result, err = s.repo.WipeLedger(ctx)
		return err
	}

	var err error
	if s.syncs != nil {
		err = s.syncs.Exclusive(wipe)
	} else {
		err = wipe()
	}
	if errors.Is(err, ErrSyncInProgress) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to wipe ledger: %w", err)
	}
	s.logger.Warn("ledger wiped",
		"payments_deleted", result.PaymentsDeleted,
		"bills_deleted", result.BillsDeleted,
	)
	return result, nil
}

// ReassignPayment moves a payment to billID (nil makes it an orphan) and
// locks it there so later syncs leave it alone
func (s *LedgerService) ReassignPayment(ctx context.Context, paymentID int64, billID *int64) (*ledger.Payment, error) {
	if billID != nil {
		if _, err := s.repo.GetBill(ctx, *billID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SetPaymentBillManual(ctx, paymentID, billID); err != nil {
		return nil, err
	}
	s.logger.Info("payment reassigned manually", "payment_id", paymentID, "bill_id", billID)
	return s.repo.GetPayment(ctx, paymentID)
}

// UnlockPayment returns a payment to automatic assignment. It moves on the
// next sync.
func (s *LedgerService) UnlockPayment(ctx context.Context, paymentID int64) (*ledger.Payment, error) {
	if err := s.repo.ClearManualLock(ctx, paymentID); err != nil {
		return nil, err
	}
	s.logger.Info("payment unlocked", "payment_id", paymentID)
	return s.repo.GetPayment(ctx, paymentID)
}

// SetPaymentOrder stores a manual display order for a bill's payments
func (s *LedgerService) SetPaymentOrder(ctx context.Context, billID int64, paymentIDs []int64) (*BillPayments, error) {
	if err := validator.ValidatePaymentOrder(paymentIDs); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	if err := s.repo.SetPaymentOrder(ctx, billID, paymentIDs); err != nil {
		return nil, err
	}
	s.logger.Info("payment order updated", "bill_id", billID, "payments", len(paymentIDs))
	return s.BillPayments(ctx, billID)
}

// ListPayees returns every payee with cards
func (s *LedgerService) ListPayees(ctx context.Context) ([]*ledger.PayeeUser, error) {
	return s.repo.ListPayees(ctx)
}

// CreatePayee adds a payee
func (s *LedgerService) CreatePayee(ctx context.Context, name string, isDefault bool) (*ledger.PayeeUser, error) {
	if err := validator.ValidatePayeeName(name); err != nil {
		return nil, err
	}
	payee, err := s.repo.CreatePayee(ctx, name, isDefault)
	if err != nil {
		return nil, err
	}
	s.logger.Info("payee created", "payee_id", payee.ID, "name", payee.Name, "default", payee.IsDefault)
	return payee, nil
}

// SetDefaultPayee switches the default payee
func (s *LedgerService) SetDefaultPayee(ctx context.Context, payeeID int64) (*ledger.PayeeUser, error) {
	if err := s.repo.SetDefaultPayee(ctx, payeeID); err != nil {
		return nil, err
	}
	return s.repo.GetPayee(ctx, payeeID)
}

// SetResponsibilities updates payee percentages. Payees missing from
// percents keep their current value; the combined set must validate
// before anything is written. Updates are serialized so each one merges
// over the result of the previous one.
func (s *LedgerService) SetResponsibilities(ctx context.Context, percents map[int64]float64) ([]*ledger.PayeeUser, error) {
	s.respMu.Lock()
	defer s.respMu.Unlock()

	payees, err := s.repo.ListPayees(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[int64]bool, len(payees))
	merged := make(map[int64]float64, len(payees))
	for _, p := range payees {
		known[p.ID] = true
		merged[p.ID] = p.ResponsibilityPercent
	}
	for id, pct := range percents {
		if !known[id] {
			return nil, fmt.Errorf("payee %d: %w", id, storage.ErrNotFound)
		}
		merged[id] = pct
	}

	if err := validator.ValidateResponsibilities(merged); err != nil {
		return nil, err
	}
	if err := s.repo.SetResponsibilities(ctx, merged); err != nil {
		return nil, err
	}

	s.logger.Info("responsibilities updated", "payees", len(percents))
	return s.repo.ListPayees(ctx)
}

// AddCard registers a card's last four digits to a payee
func (s *LedgerService) AddCard(ctx context.Context, payeeID int64, lastFour, label string) (*ledger.UserCard, error) {
	if err := validator.ValidateCardLastFour(lastFour); err != nil {
		return nil, err
	}
	card, err := s.repo.AddCard(ctx, payeeID, lastFour, label)
	if err != nil {
		return nil, err
	}
	s.logger.Info("card registered", "payee_id", payeeID, "card", lastFour)
	return card, nil
}

// RemoveCard unregisters a card
func (s *LedgerService) RemoveCard(ctx context.Context, lastFour string) error {
	if err := validator.ValidateCardLastFour(lastFour); err != nil {
		return err
	}
	return s.repo.RemoveCard(ctx, lastFour)
}

// nestPayments attaches each bill's payments in display order
func nestPayments(data *storage.LedgerData) []*ledger.Bill {
	byBill := make(map[int64][]*ledger.Payment, len(data.Bills))
	for _, p := range data.Payments {
		if p.BillID != nil {
			byBill[*p.BillID] = append(byBill[*p.BillID], p)
		}
	}

	bills := make([]*ledger.Bill, 0, len(data.Bills))
	for _, b := range data.Bills {
		copied := *b
		copied.Payments = byBill[b.ID]
		if copied.Payments == nil {
			copied.Payments = []*ledger.Payment{}
		}
		ledger.SortPayments(copied.Payments)
		bills = append(bills, &copied)
	}
	ledger.SortBills(bills)
	return bills
}
