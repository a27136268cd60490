package storage

import (
	"context"
	"errors"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, in-memory)
// and makes testing with mocks straightforward.
type Repository interface {
	BillRepository
	PaymentRepository
	PayeeRepository
	BalanceRepository
	SyncRunRepository

	// LedgerSnapshot reads bills, payments and payees in one consistent view
	LedgerSnapshot(ctx context.Context) (*LedgerData, error)

	// WipeLedger deletes every payment, then every bill
	WipeLedger(ctx context.Context) (*WipeResult, error)

	Close() error
}

// BillRepository handles bill operations
type BillRepository interface {
	// UpsertBill inserts a bill or refreshes the one with the same identity
	UpsertBill(ctx context.Context, in BillUpsert) (*BillUpsertResult, error)

	// GetBill retrieves a bill by ID
	GetBill(ctx context.Context, id int64) (*ledger.Bill, error)

	// ListBills returns all bills, oldest cycle first
	ListBills(ctx context.Context) ([]*ledger.Bill, error)
}

// PaymentRepository handles payment operations
type PaymentRepository interface {
	// GetPaymentByHash looks up a payment by content hash
	GetPaymentByHash(ctx context.Context, hash string) (*ledger.Payment, error)

	// GetPayment retrieves a payment by ID
	GetPayment(ctx context.Context, id int64) (*ledger.Payment, error)

	// InsertPayment stores a new payment and sets its ID
	InsertPayment(ctx context.Context, p *ledger.Payment) error

	// TouchPayment records a re-sighting: last_seen and scrape_count only
	TouchPayment(ctx context.Context, id int64, seenAt time.Time) error

	// AssignPaymentBill sets the automatic bill assignment. Locked payments
	// are left alone and false is returned.
	AssignPaymentBill(ctx context.Context, id int64, billID *int64) (bool, error)

	// SetPaymentBillManual assigns a bill and sets the manual lock
	SetPaymentBillManual(ctx context.Context, id int64, billID *int64) error

	// ClearManualLock removes the manual lock and manual order
	ClearManualLock(ctx context.Context, id int64) error

	// SetPaymentOrder sets manual_order (and the lock) for payments on a bill
	SetPaymentOrder(ctx context.Context, billID int64, paymentIDs []int64) error

	// UpdateAttribution writes attribution state. When onlyIf is given the
	// update only applies if the current status is one of them.
	UpdateAttribution(ctx context.Context, id int64, attr ledger.Attribution, onlyIf ...ledger.AttributionStatus) (bool, error)

	// ListPayments returns payments matching filter
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*ledger.Payment, error)
}

// PayeeRepository handles payees and their cards
type PayeeRepository interface {
	CreatePayee(ctx context.Context, name string, isDefault bool) (*ledger.PayeeUser, error)
	GetPayee(ctx context.Context, id int64) (*ledger.PayeeUser, error)
	ListPayees(ctx context.Context) ([]*ledger.PayeeUser, error)

	// GetDefaultPayee returns ErrNotFound when no default is configured
	GetDefaultPayee(ctx context.Context) (*ledger.PayeeUser, error)

	// SetDefaultPayee makes id the only default payee
	SetDefaultPayee(ctx context.Context, id int64) error

	// SetResponsibilities writes all percentages atomically. Callers validate first.
	SetResponsibilities(ctx context.Context, percents map[int64]float64) error

	AddCard(ctx context.Context, payeeID int64, lastFour, label string) (*ledger.UserCard, error)
	RemoveCard(ctx context.Context, lastFour string) error

	// GetPayeeByCard returns the owner of a card, ErrNotFound when unregistered
	GetPayeeByCard(ctx context.Context, lastFour string) (*ledger.PayeeUser, error)
}

// BalanceRepository handles account balance history
type BalanceRepository interface {
	// LatestBalance returns ErrNotFound when nothing was recorded yet
	LatestBalance(ctx context.Context) (*ledger.BalanceSnapshot, error)
	RecordBalance(ctx context.Context, b *ledger.BalanceSnapshot) error
}

// SyncRunRepository handles sync run tracking
type SyncRunRepository interface {
	// StartSyncRun records the start of a sync run
	StartSyncRun(ctx context.Context, runID, source string) error

	// CompleteSyncRun records the outcome of a sync run
	CompleteSyncRun(ctx context.Context, run *SyncRun) error

	// ListSyncRuns returns recent sync runs, newest first
	ListSyncRuns(ctx context.Context, limit int) ([]*SyncRun, error)

	// GetSyncRun retrieves a sync run by ID
	GetSyncRun(ctx context.Context, runID string) (*SyncRun, error)
}

// BillUpsert is the bill data a snapshot provides
type BillUpsert struct {
	CycleDate  string
	MonthRange string
	IssueDate  string
	TotalRaw   string
	Total      *float64
	SeenAt     time.Time
}

// BillUpsertResult reports what the upsert did
type BillUpsertResult struct {
	Bill    *ledger.Bill
	Created bool
}

// PaymentFilter selects payments. Zero values mean "any".
type PaymentFilter struct {
	BillID         *int64
	PayeeID        *int64
	Statuses       []ledger.AttributionStatus
	OrphansOnly    bool
	Unattributed   bool       // payee_id IS NULL
	PendingExpired *time.Time // pending_until < value
}

// LedgerData is a consistent read of the whole ledger
type LedgerData struct {
	Bills    []*ledger.Bill
	Payments []*ledger.Payment
	Payees   []*ledger.PayeeUser
}

// WipeResult counts deleted rows
type WipeResult struct {
	PaymentsDeleted int64 `json:"payments_deleted"`
	BillsDeleted    int64 `json:"bills_deleted"`
}

// Sync run statuses
const (
	SyncRunRunning   = "running"
	SyncRunCompleted = "completed"
	SyncRunFailed    = "failed"
)

// SyncRun represents a sync run record
type SyncRun struct {
	ID                 string     `json:"id"`
	Source             string     `json:"source"`
	Status             string     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	EntriesTotal       int        `json:"entries_total"`
	BillsCreated       int        `json:"bills_created"`
	BillsUpdated       int        `json:"bills_updated"`
	PaymentsCreated    int        `json:"payments_created"`
	PaymentsUpdated    int        `json:"payments_updated"`
	PaymentsReassigned int        `json:"payments_reassigned"`
	Orphans            int        `json:"orphans"`
	Skipped            int        `json:"skipped"`
	BalanceChanged     bool       `json:"balance_changed"`
	ErrorMessage       string     `json:"error_message,omitempty"`
}
