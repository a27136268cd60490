package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
)

// AttributionHandler runs the automatic attribution passes on demand.
type AttributionHandler struct {
	*Base
	attribution *attribution.Service
	now         func() time.Time
}

// NewAttributionHandler creates a new attribution handler.
func NewAttributionHandler(attr *attribution.Service, logger *slog.Logger) *AttributionHandler {
	return &AttributionHandler{
		Base:        NewBase(logger),
		attribution: attr,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CardHints handles POST /api/attribution/card-hints.
func (h *AttributionHandler) CardHints(c *gin.Context) {
	var req dto.CardHintsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	hints, err := req.ToHints()
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	stats, err := h.attribution.ApplyCardHints(c.Request.Context(), hints)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, stats)
}

// Sweep handles POST /api/attribution/sweep - assigns expired pending
// payments to the default payee now instead of waiting for the timer.
func (h *AttributionHandler) Sweep(c *gin.Context) {
	result, err := h.attribution.SweepExpired(c.Request.Context(), h.now())
	switch {
	case errors.Is(err, attribution.ErrNoDefaultPayee):
		h.WriteJSON(c, http.StatusOK, dto.SweepResponse{SweepResult: result, Warning: err.Error()})
	case err != nil:
		h.HandleError(c, err)
	default:
		h.WriteJSON(c, http.StatusOK, dto.SweepResponse{SweepResult: result})
	}
}
