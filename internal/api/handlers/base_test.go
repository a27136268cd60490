package handlers_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/api/handlers"
	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
	"github.com/eshaffer321/utility-ledger/internal/domain/validator"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

func TestBase_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation error",
			err:        &validator.ValidationError{Field: "responsibilities", Reason: "must sum to 100"},
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeValidation,
		},
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("payment 7: %w", storage.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeNotFound,
		},
		{
			name:       "sync in progress",
			err:        service.ErrSyncInProgress,
			wantStatus: http.StatusConflict,
			wantCode:   dto.ErrCodeSyncInProgress,
		},
		{
			name:       "unique conflict",
			err:        fmt.Errorf("payee Alex: %w", storage.ErrConflict),
			wantStatus: http.StatusConflict,
			wantCode:   dto.ErrCodeConflict,
		},
		{
			name:       "no default payee",
			err:        attribution.ErrNoDefaultPayee,
			wantStatus: http.StatusConflict,
			wantCode:   dto.ErrCodeConflict,
		},
		{
			name:       "anything else is internal",
			err:        errors.New("disk I/O error"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := handlers.NewBase(nil)
			r := gin.New()
			r.GET("/", func(c *gin.Context) { base.HandleError(c, tt.err) })

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var response dto.APIError
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
			assert.Equal(t, tt.wantCode, response.Code)
		})
	}
}

func TestBase_PathID(t *testing.T) {
	base := handlers.NewBase(nil)
	r := gin.New()
	r.GET("/items/:id", func(c *gin.Context) {
		id, ok := base.PathID(c, "id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	for path, want := range map[string]int{
		"/items/12":  http.StatusOK,
		"/items/0":   http.StatusBadRequest,
		"/items/-3":  http.StatusBadRequest,
		"/items/abc": http.StatusBadRequest,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
