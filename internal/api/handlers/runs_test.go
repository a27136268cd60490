package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/utility-ledger/internal/api/dto"
	"github.com/eshaffer321/utility-ledger/internal/api/handlers"
	"github.com/eshaffer321/utility-ledger/internal/application/ingest"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRunsRouter(repo *storage.MockRepository) (*gin.Engine, *service.SyncService) {
	syncs := service.NewSyncService(ingest.NewEngine(repo, ingest.Config{}, nil), repo, nil)
	handler := handlers.NewRunsHandler(syncs, nil)

	r := gin.New()
	r.GET("/api/runs", handler.List)
	r.GET("/api/runs/:id", handler.Get)
	return r, syncs
}

func runSync(t *testing.T, syncs *service.SyncService) string {
	t.Helper()
	outcome, err := syncs.Sync(context.Background(), service.SourceCLI, ledger.Snapshot{
		Ledger: []ledger.Entry{{Type: "bill", BillCycleDate: "2024-01-15", BillTotal: "$100.00"}},
	})
	require.NoError(t, err)
	return outcome.RunID
}

func TestRunsHandler_List(t *testing.T) {
	t.Run("returns empty list when no runs", func(t *testing.T) {
		r, _ := newRunsRouter(storage.NewMockRepository())

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.SyncRunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Empty(t, response.Runs)
		assert.NotNil(t, response.Runs)
		assert.Equal(t, 0, response.Count)
	})

	t.Run("returns runs from repository", func(t *testing.T) {
		r, syncs := newRunsRouter(storage.NewMockRepository())
		runSync(t, syncs)
		runSync(t, syncs)

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.SyncRunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, 2, response.Count)
		assert.Len(t, response.Runs, 2)
		assert.Equal(t, service.SourceCLI, response.Runs[0].Source)
	})

	t.Run("respects limit parameter", func(t *testing.T) {
		r, syncs := newRunsRouter(storage.NewMockRepository())
		for i := 0; i < 5; i++ {
			runSync(t, syncs)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=3", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.SyncRunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, 3, response.Count)
	})
}

func TestRunsHandler_Get(t *testing.T) {
	t.Run("returns run by id", func(t *testing.T) {
		r, syncs := newRunsRouter(storage.NewMockRepository())
		runID := runSync(t, syncs)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/"+runID, nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.SyncRunResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, runID, response.ID)
		assert.Equal(t, storage.SyncRunCompleted, response.Status)
		assert.Equal(t, 1, response.BillsCreated)
		assert.NotEmpty(t, response.CompletedAt)
	})

	t.Run("returns 404 for unknown run", func(t *testing.T) {
		r, _ := newRunsRouter(storage.NewMockRepository())

		req := httptest.NewRequest(http.MethodGet, "/api/runs/does-not-exist", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var response dto.APIError
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, dto.ErrCodeNotFound, response.Code)
	})
}
