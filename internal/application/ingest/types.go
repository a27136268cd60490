package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// Store is the subset of storage the engine writes through
type Store interface {
	storage.BillRepository
	storage.PaymentRepository
	storage.BalanceRepository
}

// Config holds engine configuration
type Config struct {
	// PendingWindow is how long a new payment waits for a card hint before
	// the sweep may attribute it to the default payee
	PendingWindow time.Duration

	// Now overrides the clock in tests
	Now func() time.Time
}

// DefaultPendingWindow is used when Config.PendingWindow is zero
const DefaultPendingWindow = 2 * time.Hour

// Result holds ingestion results
type Result struct {
	EntriesTotal       int            `json:"entries_total"`
	BillsCreated       int            `json:"bills_created"`
	BillsUpdated       int            `json:"bills_updated"`
	PaymentsCreated    int            `json:"payments_created"`
	PaymentsUpdated    int            `json:"payments_updated"`
	PaymentsReassigned int            `json:"payments_reassigned"`
	PaymentsLocked     int            `json:"payments_locked"`
	Orphans            int            `json:"orphans"`
	Skipped            map[string]int `json:"skipped,omitempty"`
	BalanceChanged     bool           `json:"balance_changed"`
	Balance            string         `json:"balance,omitempty"`
}

func newResult() *Result {
	return &Result{Skipped: make(map[string]int)}
}

// SkippedCount returns the number of entries skipped for any reason
func (r *Result) SkippedCount() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// SkipReasons returns the skip reasons in a stable order
func (r *Result) SkipReasons() []string {
	reasons := make([]string, 0, len(r.Skipped))
	for reason := range r.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}

func (r *Result) skip(err *ledger.SkippedEntryError) {
	key := "invalid_" + err.Field
	if err.Reason == "missing" {
		key = "missing_" + err.Field
	}
	r.Skipped[key]++
}

// Ingester is implemented by Engine; services depend on this
type Ingester interface {
	Run(ctx context.Context, snap ledger.Snapshot) (*Result, error)
}
