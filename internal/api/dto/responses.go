package dto

import (
	"time"

	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response stamped with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// PaymentListResponse is returned when listing payments.
type PaymentListResponse struct {
	Payments []*ledger.Payment `json:"payments"`
	Count    int               `json:"count"`
}

// NewPaymentListResponse wraps payments, never encoding null.
func NewPaymentListResponse(payments []*ledger.Payment) PaymentListResponse {
	if payments == nil {
		payments = []*ledger.Payment{}
	}
	return PaymentListResponse{Payments: payments, Count: len(payments)}
}

// PayeeListResponse is returned when listing payees.
type PayeeListResponse struct {
	Payees []*ledger.PayeeUser `json:"payees"`
	Count  int                 `json:"count"`
}

// NewPayeeListResponse wraps payees, never encoding null.
func NewPayeeListResponse(payees []*ledger.PayeeUser) PayeeListResponse {
	if payees == nil {
		payees = []*ledger.PayeeUser{}
	}
	return PayeeListResponse{Payees: payees, Count: len(payees)}
}

// SyncRunResponse represents a sync run in API responses.
type SyncRunResponse struct {
	ID                 string `json:"id"`
	Source             string `json:"source"`
	Status             string `json:"status"`
	StartedAt          string `json:"started_at"`
	CompletedAt        string `json:"completed_at,omitempty"`
	EntriesTotal       int    `json:"entries_total"`
	BillsCreated       int    `json:"bills_created"`
	BillsUpdated       int    `json:"bills_updated"`
	PaymentsCreated    int    `json:"payments_created"`
	PaymentsUpdated    int    `json:"payments_updated"`
	PaymentsReassigned int    `json:"payments_reassigned"`
	Orphans            int    `json:"orphans"`
	Skipped            int    `json:"skipped"`
	BalanceChanged     bool   `json:"balance_changed"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// SyncRunListResponse is returned when listing sync runs.
type SyncRunListResponse struct {
	Runs    []SyncRunResponse `json:"runs"`
	Count   int               `json:"count"`
	Syncing bool              `json:"syncing"`
}

// ToSyncRunResponse converts a stored run to its API shape.
func ToSyncRunResponse(run *storage.SyncRun) SyncRunResponse {
	resp := SyncRunResponse{
		ID:                 run.ID,
		Source:             run.Source,
		Status:             run.Status,
		StartedAt:          run.StartedAt.Format(time.RFC3339),
		EntriesTotal:       run.EntriesTotal,
		BillsCreated:       run.BillsCreated,
		BillsUpdated:       run.BillsUpdated,
		PaymentsCreated:    run.PaymentsCreated,
		PaymentsUpdated:    run.PaymentsUpdated,
		PaymentsReassigned: run.PaymentsReassigned,
		Orphans:            run.Orphans,
		Skipped:            run.Skipped,
		BalanceChanged:     run.BalanceChanged,
		ErrorMessage:       run.ErrorMessage,
	}
	if run.CompletedAt != nil {
		resp.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// SnapshotResponse reports the outcome of an ingested snapshot.
type SnapshotResponse struct {
	RunID              string         `json:"run_id"`
	DurationMs         int64          `json:"duration_ms"`
	EntriesTotal       int            `json:"entries_total"`
	BillsCreated       int            `json:"bills_created"`
	BillsUpdated       int            `json:"bills_updated"`
	PaymentsCreated    int            `json:"payments_created"`
	PaymentsUpdated    int            `json:"payments_updated"`
	PaymentsReassigned int            `json:"payments_reassigned"`
	PaymentsLocked     int            `json:"payments_locked"`
	Orphans            int            `json:"orphans"`
	Skipped            map[string]int `json:"skipped"`
	BalanceChanged     bool           `json:"balance_changed"`
}

// SweepResponse reports a manual sweep. Warning is set when expired
// payments were left alone because no default payee exists.
type SweepResponse struct {
	*attribution.SweepResult
	Warning string `json:"warning,omitempty"`
}

// SchedulerResponse shows the active background configuration.
type SchedulerResponse struct {
	Running        bool   `json:"running"`
	ResyncInterval string `json:"resync_interval"`
	SweepInterval  string `json:"sweep_interval"`
}

// WipeResponse reports what a ledger wipe removed.
type WipeResponse struct {
	PaymentsDeleted int64 `json:"payments_deleted"`
	BillsDeleted    int64 `json:"bills_deleted"`
}
