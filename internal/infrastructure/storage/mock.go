package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated, and follows
// the same identity and locking rules as the SQLite implementation.
type MockRepository struct {
	mu sync.Mutex

	bills    map[int64]*ledger.Bill
	payments map[int64]*ledger.Payment
	payees   map[int64]*ledger.PayeeUser
	cards    map[string]ledger.UserCard
	balances []ledger.BalanceSnapshot
	syncRuns map[string]*SyncRun
	runOrder []string

	nextBillID    int64
	nextPaymentID int64
	nextPayeeID   int64
	nextCardID    int64

	// Hooks for test assertions
	UpsertBillCalls        int
	InsertPaymentCalls     int
	UpdateAttributionCalls int
	WipeCalled             bool

	// Error injection for testing error paths
	UpsertBillErr      error
	InsertPaymentErr   error
	ListPaymentsErr    error
	SnapshotErr        error
	StartSyncRunErr    error
	UpdateAttributionErr error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		bills:    make(map[int64]*ledger.Bill),
		payments: make(map[int64]*ledger.Payment),
		payees:   make(map[int64]*ledger.PayeeUser),
		cards:    make(map[string]ledger.UserCard),
		syncRuns: make(map[string]*SyncRun),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close is a no-op
func (m *MockRepository) Close() error { return nil }

func (m *MockRepository) UpsertBill(_ context.Context, in BillUpsert) (*BillUpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertBillCalls++
	if m.UpsertBillErr != nil {
		return nil, m.UpsertBillErr
	}

	monthRange := strings.TrimSpace(in.MonthRange)
	for _, b := range m.bills {
		if b.CycleDate == in.CycleDate && b.MonthRange == monthRange {
			if in.IssueDate != "" {
				b.IssueDate = in.IssueDate
			}
			if in.TotalRaw != "" {
				b.TotalRaw = in.TotalRaw
				b.Total = copyFloat(in.Total)
			}
			b.LastSeen = in.SeenAt
			b.ScrapeCount++
			return &BillUpsertResult{Bill: copyBill(b), Created: false}, nil
		}
	}

	m.nextBillID++
	b := &ledger.Bill{
		ID:          m.nextBillID,
		CycleDate:   in.CycleDate,
		MonthRange:  monthRange,
		IssueDate:   in.IssueDate,
		TotalRaw:    in.TotalRaw,
		Total:       copyFloat(in.Total),
		FirstSeen:   in.SeenAt,
		LastSeen:    in.SeenAt,
		ScrapeCount: 1,
	}
	m.bills[b.ID] = b
	return &BillUpsertResult{Bill: copyBill(b), Created: true}, nil
}

func (m *MockRepository) GetBill(_ context.Context, id int64) (*ledger.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return nil, fmt.Errorf("bill %d: %w", id, ErrNotFound)
	}
	return copyBill(b), nil
}

func (m *MockRepository) ListBills(_ context.Context) ([]*ledger.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listBillsLocked(), nil
}

func (m *MockRepository) listBillsLocked() []*ledger.Bill {
	bills := make([]*ledger.Bill, 0, len(m.bills))
	for _, b := range m.bills {
		bills = append(bills, copyBill(b))
	}
	ledger.SortBills(bills)
	return bills
}

func (m *MockRepository) GetPaymentByHash(_ context.Context, hash string) (*ledger.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.Hash == hash {
			return copyPayment(p), nil
		}
	}
	return nil, fmt.Errorf("payment hash %s: %w", hash, ErrNotFound)
}

func (m *MockRepository) GetPayment(_ context.Context, id int64) (*ledger.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	return copyPayment(p), nil
}

func (m *MockRepository) InsertPayment(_ context.Context, p *ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertPaymentCalls++
	if m.InsertPaymentErr != nil {
		return m.InsertPaymentErr
	}
	for _, existing := range m.payments {
		if existing.Hash == p.Hash {
			return fmt.Errorf("payment hash %s: %w", p.Hash, ErrConflict)
		}
	}
	if p.BillID != nil {
		if _, ok := m.bills[*p.BillID]; !ok {
			return fmt.Errorf("bill %d: %w", *p.BillID, ErrNotFound)
		}
	}

	m.nextPaymentID++
	p.ID = m.nextPaymentID
	if p.Attribution.Status == "" {
		p.Attribution.Status = ledger.StatusPending
	}
	if p.ScrapeCount == 0 {
		p.ScrapeCount = 1
	}
	m.payments[p.ID] = copyPayment(p)
	return nil
}

func (m *MockRepository) TouchPayment(_ context.Context, id int64, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	p.LastSeen = seenAt
	p.ScrapeCount++
	return nil
}

func (m *MockRepository) AssignPaymentBill(_ context.Context, id int64, billID *int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.ManualBillLock {
		return false, nil
	}
	p.BillID = copyInt(billID)
	return true, nil
}

func (m *MockRepository) SetPaymentBillManual(_ context.Context, id int64, billID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	if billID != nil {
		if _, ok := m.bills[*billID]; !ok {
			return fmt.Errorf("bill %d: %w", *billID, ErrNotFound)
		}
	}
	p.BillID = copyInt(billID)
	p.ManualBillLock = true
	return nil
}

func (m *MockRepository) ClearManualLock(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	p.ManualBillLock = false
	p.ManualOrder = nil
	return nil
}

func (m *MockRepository) SetPaymentOrder(_ context.Context, billID int64, paymentIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range paymentIDs {
		p, ok := m.payments[id]
		if !ok || p.BillID == nil || *p.BillID != billID {
			return fmt.Errorf("payment %d on bill %d: %w", id, billID, ErrNotFound)
		}
	}
	for i, id := range paymentIDs {
		order := i + 1
		m.payments[id].ManualOrder = &order
		m.payments[id].ManualBillLock = true
	}
	return nil
}

func (m *MockRepository) UpdateAttribution(_ context.Context, id int64, attr ledger.Attribution, onlyIf ...ledger.AttributionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateAttributionCalls++
	if m.UpdateAttributionErr != nil {
		return false, m.UpdateAttributionErr
	}
	p, ok := m.payments[id]
	if !ok {
		if len(onlyIf) > 0 {
			return false, nil
		}
		return false, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	if attr.PayeeID != nil {
		if _, ok := m.payees[*attr.PayeeID]; !ok {
			return false, fmt.Errorf("payee %d: %w", *attr.PayeeID, ErrNotFound)
		}
	}
	if len(onlyIf) > 0 && !containsStatus(onlyIf, p.Attribution.Status) {
		return false, nil
	}
	p.Attribution = copyAttribution(attr)
	return true, nil
}

func (m *MockRepository) ListPayments(_ context.Context, filter PaymentFilter) ([]*ledger.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListPaymentsErr != nil {
		return nil, m.ListPaymentsErr
	}
	return m.listPaymentsLocked(filter), nil
}

func (m *MockRepository) listPaymentsLocked(filter PaymentFilter) []*ledger.Payment {
	out := make([]*ledger.Payment, 0)
	for _, p := range m.payments {
		if filter.BillID != nil && (p.BillID == nil || *p.BillID != *filter.BillID) {
			continue
		}
		if filter.PayeeID != nil && (p.Attribution.PayeeID == nil || *p.Attribution.PayeeID != *filter.PayeeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, p.Attribution.Status) {
			continue
		}
		if filter.OrphansOnly && p.BillID != nil {
			continue
		}
		if filter.Unattributed && p.Attribution.PayeeID != nil {
			continue
		}
		if filter.PendingExpired != nil && (p.PendingUntil == nil || !p.PendingUntil.Before(*filter.PendingExpired)) {
			continue
		}
		out = append(out, copyPayment(p))
	}

	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i].BillID, out[j].BillID
		switch {
		case bi == nil && bj != nil:
			return false
		case bi != nil && bj == nil:
			return true
		case bi != nil && bj != nil && *bi != *bj:
			return *bi < *bj
		}
		return out[i].ID < out[j].ID
	})
	// display order within each bill
	start := 0
	for i := 1; i <= len(out); i++ {
		if i == len(out) || !sameBill(out[i].BillID, out[start].BillID) {
			ledger.SortPayments(out[start:i])
			start = i
		}
	}
	return out
}

func (m *MockRepository) CreatePayee(_ context.Context, name string, isDefault bool) (*ledger.PayeeUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = strings.TrimSpace(name)
	for _, p := range m.payees {
		if p.Name == name {
			return nil, fmt.Errorf("payee %q: %w", name, ErrConflict)
		}
	}
	if isDefault {
		for _, p := range m.payees {
			p.IsDefault = false
		}
	}
	m.nextPayeeID++
	p := &ledger.PayeeUser{ID: m.nextPayeeID, Name: name, IsDefault: isDefault, CreatedAt: time.Now().UTC()}
	m.payees[p.ID] = p
	return m.payeeWithCardsLocked(p), nil
}

func (m *MockRepository) GetPayee(_ context.Context, id int64) (*ledger.PayeeUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payees[id]
	if !ok {
		return nil, fmt.Errorf("payee %d: %w", id, ErrNotFound)
	}
	return m.payeeWithCardsLocked(p), nil
}

func (m *MockRepository) ListPayees(_ context.Context) ([]*ledger.PayeeUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPayeesLocked(), nil
}

func (m *MockRepository) listPayeesLocked() []*ledger.PayeeUser {
	out := make([]*ledger.PayeeUser, 0, len(m.payees))
	for _, p := range m.payees {
		out = append(out, m.payeeWithCardsLocked(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockRepository) GetDefaultPayee(_ context.Context) (*ledger.PayeeUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.listPayeesLocked() {
		if p.IsDefault {
			return p, nil
		}
	}
	return nil, fmt.Errorf("default payee: %w", ErrNotFound)
}

func (m *MockRepository) SetDefaultPayee(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payees[id]; !ok {
		return fmt.Errorf("payee %d: %w", id, ErrNotFound)
	}
	for _, p := range m.payees {
		p.IsDefault = p.ID == id
	}
	return nil
}

func (m *MockRepository) SetResponsibilities(_ context.Context, percents map[int64]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range percents {
		if _, ok := m.payees[id]; !ok {
			return fmt.Errorf("payee %d: %w", id, ErrNotFound)
		}
	}
	for id, pct := range percents {
		m.payees[id].ResponsibilityPercent = pct
	}
	return nil
}

func (m *MockRepository) AddCard(_ context.Context, payeeID int64, lastFour, label string) (*ledger.UserCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payees[payeeID]; !ok {
		return nil, fmt.Errorf("payee %d: %w", payeeID, ErrNotFound)
	}
	if _, exists := m.cards[lastFour]; exists {
		return nil, fmt.Errorf("card %s: %w", lastFour, ErrConflict)
	}
	m.nextCardID++
	card := ledger.UserCard{ID: m.nextCardID, PayeeID: payeeID, LastFour: lastFour, Label: label, AddedAt: time.Now().UTC()}
	m.cards[lastFour] = card
	return &card, nil
}

func (m *MockRepository) RemoveCard(_ context.Context, lastFour string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[lastFour]; !ok {
		return fmt.Errorf("card %s: %w", lastFour, ErrNotFound)
	}
	delete(m.cards, lastFour)
	return nil
}

func (m *MockRepository) GetPayeeByCard(_ context.Context, lastFour string) (*ledger.PayeeUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[lastFour]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", lastFour, ErrNotFound)
	}
	return m.payeeWithCardsLocked(m.payees[card.PayeeID]), nil
}

func (m *MockRepository) payeeWithCardsLocked(p *ledger.PayeeUser) *ledger.PayeeUser {
	out := *p
	out.Cards = []ledger.UserCard{}
	for _, c := range m.cards {
		if c.PayeeID == p.ID {
			out.Cards = append(out.Cards, c)
		}
	}
	sort.Slice(out.Cards, func(i, j int) bool { return out.Cards[i].ID < out.Cards[j].ID })
	return &out
}

func (m *MockRepository) LatestBalance(_ context.Context) (*ledger.BalanceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.balances) == 0 {
		return nil, fmt.Errorf("balance: %w", ErrNotFound)
	}
	b := m.balances[len(m.balances)-1]
	return &b, nil
}

func (m *MockRepository) RecordBalance(_ context.Context, b *ledger.BalanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = int64(len(m.balances) + 1)
	m.balances = append(m.balances, *b)
	return nil
}

// Balances returns every recorded balance snapshot
func (m *MockRepository) Balances() []ledger.BalanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.BalanceSnapshot, len(m.balances))
	copy(out, m.balances)
	return out
}

func (m *MockRepository) StartSyncRun(_ context.Context, runID, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartSyncRunErr != nil {
		return m.StartSyncRunErr
	}
	m.syncRuns[runID] = &SyncRun{ID: runID, Source: source, Status: SyncRunRunning, StartedAt: time.Now().UTC()}
	m.runOrder = append(m.runOrder, runID)
	return nil
}

func (m *MockRepository) CompleteSyncRun(_ context.Context, run *SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.syncRuns[run.ID]
	if !ok {
		return fmt.Errorf("sync run %s: %w", run.ID, ErrNotFound)
	}
	updated := *run
	updated.StartedAt = existing.StartedAt
	updated.Source = existing.Source
	if updated.CompletedAt == nil {
		now := time.Now().UTC()
		updated.CompletedAt = &now
	}
	m.syncRuns[run.ID] = &updated
	return nil
}

func (m *MockRepository) ListSyncRuns(_ context.Context, limit int) ([]*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]*SyncRun, 0)
	for i := len(m.runOrder) - 1; i >= 0 && len(out) < limit; i-- {
		run := *m.syncRuns[m.runOrder[i]]
		out = append(out, &run)
	}
	return out, nil
}

func (m *MockRepository) GetSyncRun(_ context.Context, runID string) (*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.syncRuns[runID]
	if !ok {
		return nil, fmt.Errorf("sync run %s: %w", runID, ErrNotFound)
	}
	out := *run
	return &out, nil
}

func (m *MockRepository) LedgerSnapshot(_ context.Context) (*LedgerData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SnapshotErr != nil {
		return nil, m.SnapshotErr
	}
	return &LedgerData{
		Bills:    m.listBillsLocked(),
		Payments: m.listPaymentsLocked(PaymentFilter{}),
		Payees:   m.listPayeesLocked(),
	}, nil
}

func (m *MockRepository) WipeLedger(_ context.Context) (*WipeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WipeCalled = true
	result := &WipeResult{PaymentsDeleted: int64(len(m.payments)), BillsDeleted: int64(len(m.bills))}
	m.payments = make(map[int64]*ledger.Payment)
	m.bills = make(map[int64]*ledger.Bill)
	return result, nil
}

func containsStatus(list []ledger.AttributionStatus, s ledger.AttributionStatus) bool {
	for _, st := range list {
		if st == s {
			return true
		}
	}
	return false
}

func sameBill(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyBill(b *ledger.Bill) *ledger.Bill {
	out := *b
	out.Total = copyFloat(b.Total)
	out.Payments = nil
	return &out
}

func copyPayment(p *ledger.Payment) *ledger.Payment {
	out := *p
	out.BillID = copyInt(p.BillID)
	out.Amount = copyFloat(p.Amount)
	out.Attribution = copyAttribution(p.Attribution)
	if p.ManualOrder != nil {
		order := *p.ManualOrder
		out.ManualOrder = &order
	}
	if p.PendingUntil != nil {
		t := *p.PendingUntil
		out.PendingUntil = &t
	}
	return &out
}

func copyAttribution(a ledger.Attribution) ledger.Attribution {
	out := a
	out.PayeeID = copyInt(a.PayeeID)
	if a.AttributedAt != nil {
		t := *a.AttributedAt
		out.AttributedAt = &t
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	i := *v
	return &i
}
