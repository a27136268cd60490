package attribution

import (
	"errors"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// ErrNoDefaultPayee is returned by operations that need a default payee
// when none is configured
var ErrNoDefaultPayee = errors.New("no default payee configured")

// Store is the subset of storage attribution needs
type Store interface {
	storage.PaymentRepository
	storage.PayeeRepository
}

// MatchStats summarizes one card-hint pass
type MatchStats struct {
	Hints            int           `json:"hints"`
	PaymentsChecked  int           `json:"payments_checked"`
	MatchedByCard    int           `json:"matched_by_card"`
	MatchedByDefault int           `json:"matched_by_default"`
	Unmatched        int           `json:"unmatched"`
	Details          []MatchDetail `json:"details"`
}

// MatchDetail records one attribution made from a hint
type MatchDetail struct {
	PaymentID    int64                    `json:"payment_id"`
	Amount       string                   `json:"amount"`
	CardLastFour string                   `json:"card_last_four,omitempty"`
	PayeeID      int64                    `json:"payee_id"`
	PayeeName    string                   `json:"payee_name"`
	Method       ledger.AttributionMethod `json:"method"`
}

// SweepResult summarizes one timeout sweep
type SweepResult struct {
	Expired    int    `json:"expired"`
	Attributed int    `json:"attributed"`
	PayeeID    int64  `json:"payee_id,omitempty"`
	PayeeName  string `json:"payee_name,omitempty"`
}

// candidateStatuses are the statuses automatic attribution may overwrite
var candidateStatuses = []ledger.AttributionStatus{ledger.StatusPending, ledger.StatusUnverified}
