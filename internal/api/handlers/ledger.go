package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

// LedgerHandler serves the full ledger and accepts new snapshots.
type LedgerHandler struct {
	*Base
	ledger *service.LedgerService
	syncs  *service.SyncService
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(ledgerSvc *service.LedgerService, syncs *service.SyncService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		Base:   NewBase(logger),
		ledger: ledgerSvc,
		syncs:  syncs,
	}
}

// Get handles GET /api/ledger - balance, bills with ordered payments, orphans.
func (h *LedgerHandler) Get(c *gin.Context) {
	view, err := h.ledger.Ledger(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, view)
}

// IngestSnapshot handles POST /api/ledger/snapshots - runs one sync over
// the posted scrape. A sync already in flight yields 409.
func (h *LedgerHandler) IngestSnapshot(c *gin.Context) {
	var snap ledger.Snapshot
	if !h.BindJSON(c, &snap) {
		return
	}

	outcome, err := h.syncs.Sync(c.Request.Context(), service.SourceAPI, snap)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	r := outcome.Result
	h.WriteJSON(c, http.StatusOK, dto.SnapshotResponse{
		RunID:              outcome.RunID,
		DurationMs:         outcome.Duration.Milliseconds(),
		EntriesTotal:       r.EntriesTotal,
		BillsCreated:       r.BillsCreated,
		BillsUpdated:       r.BillsUpdated,
		PaymentsCreated:    r.PaymentsCreated,
		PaymentsUpdated:    r.PaymentsUpdated,
		PaymentsReassigned: r.PaymentsReassigned,
		PaymentsLocked:     r.PaymentsLocked,
		Orphans:            r.Orphans,
		Skipped:            r.Skipped,
		BalanceChanged:     r.BalanceChanged,
	})
}

// Wipe handles DELETE /api/ledger - removes all bills and payments.
func (h *LedgerHandler) Wipe(c *gin.Context) {
	result, err := h.ledger.Wipe(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, dto.WipeResponse{
		PaymentsDeleted: result.PaymentsDeleted,
		BillsDeleted:    result.BillsDeleted,
	})
}
