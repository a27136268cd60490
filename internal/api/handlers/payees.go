package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
)

// PayeesHandler manages payees, their shares and their cards.
type PayeesHandler struct {
	*Base
	ledger *service.LedgerService
}

// NewPayeesHandler creates a new payees handler.
func NewPayeesHandler(ledgerSvc *service.LedgerService, logger *slog.Logger) *PayeesHandler {
	return &PayeesHandler{Base: NewBase(logger), ledger: ledgerSvc}
}

// List handles GET /api/payees.
func (h *PayeesHandler) List(c *gin.Context) {
	payees, err := h.ledger.ListPayees(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, dto.NewPayeeListResponse(payees))
}

// Create handles POST /api/payees.
func (h *PayeesHandler) Create(c *gin.Context) {
	var req dto.CreatePayeeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	payee, err := h.ledger.CreatePayee(c.Request.Context(), req.Name, req.IsDefault)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusCreated, payee)
}

// SetResponsibilities handles PUT /api/payees/responsibilities.
func (h *PayeesHandler) SetResponsibilities(c *gin.Context) {
	var req dto.ResponsibilitiesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	percents, err := req.ToMap()
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	payees, err := h.ledger.SetResponsibilities(c.Request.Context(), percents)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, dto.NewPayeeListResponse(payees))
}

// SetDefault handles PUT /api/payees/:id/default.
func (h *PayeesHandler) SetDefault(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	payee, err := h.ledger.SetDefaultPayee(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, payee)
}

// AddCard handles POST /api/payees/:id/cards.
func (h *PayeesHandler) AddCard(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.AddCardRequest
	if !h.BindJSON(c, &req) {
		return
	}
	card, err := h.ledger.AddCard(c.Request.Context(), id, req.LastFour, req.Label)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusCreated, card)
}

// RemoveCard handles DELETE /api/cards/:lastFour.
func (h *PayeesHandler) RemoveCard(c *gin.Context) {
	if err := h.ledger.RemoveCard(c.Request.Context(), c.Param("lastFour")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
