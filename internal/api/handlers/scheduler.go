package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
)

// SchedulerHandler exposes the background loop configuration.
type SchedulerHandler struct {
	*Base
	scheduler *service.Scheduler
}

// NewSchedulerHandler creates a new scheduler handler.
func NewSchedulerHandler(scheduler *service.Scheduler, logger *slog.Logger) *SchedulerHandler {
	return &SchedulerHandler{Base: NewBase(logger), scheduler: scheduler}
}

// Get handles GET /api/scheduler.
func (h *SchedulerHandler) Get(c *gin.Context) {
	h.WriteJSON(c, http.StatusOK, h.response())
}

// Update handles PUT /api/scheduler - stops the loops, waits for the
// current cycle and restarts them with the new intervals.
func (h *SchedulerHandler) Update(c *gin.Context) {
	var req dto.SchedulerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resync, sweep, err := req.Durations()
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	if resync < 0 || sweep < 0 {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError("intervals must not be negative"))
		return
	}

	cfg := service.SchedulerConfig{ResyncInterval: resync, SweepInterval: sweep}
	if err := h.scheduler.Reconfigure(c.Request.Context(), cfg); err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, h.response())
}

func (h *SchedulerHandler) response() dto.SchedulerResponse {
	cfg := h.scheduler.Config()
	return dto.SchedulerResponse{
		Running:        h.scheduler.IsRunning(),
		ResyncInterval: cfg.ResyncInterval.String(),
		SweepInterval:  cfg.SweepInterval.String(),
	}
}
