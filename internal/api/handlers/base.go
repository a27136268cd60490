package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
	"github.com/eshaffer321/utility-ledger/internal/domain/validator"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// Base provides shared functionality for all handlers.
type Base struct {
	logger *slog.Logger
}

// NewBase creates a new base handler.
func NewBase(logger *slog.Logger) *Base {
	return &Base{logger: logging.OrDefault(logger)}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(c *gin.Context, status int, err dto.APIError) {
	c.AbortWithStatusJSON(status, err)
}

// HandleError maps a service error to its HTTP status and writes it.
func (b *Base) HandleError(c *gin.Context, err error) {
	var verr *validator.ValidationError
	switch {
	case errors.As(err, &verr):
		b.WriteError(c, http.StatusBadRequest, dto.ValidationError(verr.Error()))
	case errors.Is(err, storage.ErrNotFound):
		b.WriteError(c, http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error()))
	case errors.Is(err, service.ErrSyncInProgress):
		b.WriteError(c, http.StatusConflict, dto.SyncInProgressError())
	case errors.Is(err, storage.ErrConflict), errors.Is(err, attribution.ErrNoDefaultPayee):
		b.WriteError(c, http.StatusConflict, dto.ConflictError(err.Error()))
	default:
		_ = c.Error(err)
		b.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		b.WriteError(c, http.StatusInternalServerError, dto.InternalError())
	}
}

// BindJSON decodes the request body into v, writing a 400 on failure.
func (b *Base) BindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		b.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// PathID parses a positive integer path parameter, writing a 400 on failure.
func (b *Base) PathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		b.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid "+name))
		return 0, false
	}
	return id, true
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(c *gin.Context, name string, defaultVal int) int {
	val := c.Query(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseBoolParam parses a boolean query parameter with a default value.
func ParseBoolParam(c *gin.Context, name string, defaultVal bool) bool {
	val := c.Query(name)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

// parseOptionalID parses an optional integer query parameter.
func parseOptionalID(c *gin.Context, name string) (*int64, error) {
	val := c.Query(name)
	if val == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
