package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
)

// BillsHandler handles bill queries and payment ordering.
type BillsHandler struct {
	*Base
	ledger *service.LedgerService
}

// NewBillsHandler creates a new bills handler.
func NewBillsHandler(ledgerSvc *service.LedgerService, logger *slog.Logger) *BillsHandler {
	return &BillsHandler{Base: NewBase(logger), ledger: ledgerSvc}
}

// Summary handles GET /api/bills/summary - per-bill payee breakdown and
// running balances.
func (h *BillsHandler) Summary(c *gin.Context) {
	report, err := h.ledger.Summary(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, report)
}

// Payments handles GET /api/bills/:id/payments.
func (h *BillsHandler) Payments(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	out, err := h.ledger.BillPayments(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, out)
}

// SetPaymentOrder handles PUT /api/bills/:id/payment-order.
func (h *BillsHandler) SetPaymentOrder(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	out, err := h.ledger.SetPaymentOrder(c.Request.Context(), id, req.PaymentIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, out)
}
