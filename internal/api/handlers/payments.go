package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
)

// PaymentsHandler handles payment listing, reassignment and attribution.
type PaymentsHandler struct {
	*Base
	ledger      *service.LedgerService
	attribution *attribution.Service
}

// NewPaymentsHandler creates a new payments handler.
func NewPaymentsHandler(ledgerSvc *service.LedgerService, attr *attribution.Service, logger *slog.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		Base:        NewBase(logger),
		ledger:      ledgerSvc,
		attribution: attr,
	}
}

// List handles GET /api/payments.
// Query params: bill_id, payee_id, orphans=true.
func (h *PaymentsHandler) List(c *gin.Context) {
	billID, err := parseOptionalID(c, "bill_id")
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid bill_id"))
		return
	}
	payeeID, err := parseOptionalID(c, "payee_id")
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid payee_id"))
		return
	}
	orphans := ParseBoolParam(c, "orphans", false)
	if orphans && billID != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("orphans and bill_id cannot be combined"))
		return
	}

	payments, err := h.ledger.Payments(c.Request.Context(), service.PaymentQuery{
		BillID:  billID,
		PayeeID: payeeID,
		Orphans: orphans,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, dto.NewPaymentListResponse(payments))
}

// Unverified handles GET /api/payments/unverified - the manual review queue.
func (h *PaymentsHandler) Unverified(c *gin.Context) {
	payments, err := h.ledger.Unverified(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, dto.NewPaymentListResponse(payments))
}

// Reassign handles PUT /api/payments/:id/bill. The payment is locked to the
// chosen bill.
func (h *PaymentsHandler) Reassign(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReassignPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	payment, err := h.ledger.ReassignPayment(c.Request.Context(), id, req.BillID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, payment)
}

// Unlock handles DELETE /api/payments/:id/lock.
func (h *PaymentsHandler) Unlock(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.ledger.UnlockPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, payment)
}

// Attribute handles POST /api/payments/:id/attribution - manual payee
// confirmation.
func (h *PaymentsHandler) Attribute(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.AttributePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	payment, err := h.attribution.AttributeManual(c.Request.Context(), id, req.PayeeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, payment)
}

// ClearAttribution handles DELETE /api/payments/:id/attribution.
func (h *PaymentsHandler) ClearAttribution(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.attribution.Clear(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, payment)
}
