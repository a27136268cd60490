package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
)

// RunsHandler handles sync run history requests.
type RunsHandler struct {
	*Base
	syncs *service.SyncService
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(syncs *service.SyncService, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{
		Base:  NewBase(logger),
		syncs: syncs,
	}
}

// List handles GET /api/runs - returns the most recent sync runs.
func (h *RunsHandler) List(c *gin.Context) {
	limit := ParseIntParam(c, "limit", 20)
	if limit <= 0 || limit > 500 {
		limit = 20
	}

	runs, err := h.syncs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	response := dto.SyncRunListResponse{
		Runs:    make([]dto.SyncRunResponse, 0, len(runs)),
		Count:   len(runs),
		Syncing: h.syncs.IsSyncing(),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, dto.ToSyncRunResponse(run))
	}

	h.WriteJSON(c, http.StatusOK, response)
}

// Get handles GET /api/runs/:id - returns a single sync run.
func (h *RunsHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.syncs.GetRun(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.WriteJSON(c, http.StatusOK, dto.ToSyncRunResponse(run))
}
