package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/mapscout/internal/models"
)

func TestListRunsDisabledHistory(t *testing.T) {
	handler := NewRunsHandler(nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()

	handler.ListRunsHandler(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRuns(t *testing.T) {
	store := newFakeRunStore()
	store.summaries["run-1"] = &models.RunSummary{
		ID:        "run-1",
		Query:     "coffee near Springfield",
		Status:    models.StatusCompleted,
		StartedAt: time.Now(),
	}
	handler := NewRunsHandler(store, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=10", nil)
	rec := httptest.NewRecorder()

	handler.ListRunsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int                  `json:"count"`
		Runs  []*models.RunSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "run-1", resp.Runs[0].ID)
}

func TestGetRun(t *testing.T) {
	store := newFakeRunStore()
	store.summaries["run-1"] = &models.RunSummary{ID: "run-1", Extracted: 5}
	handler := NewRunsHandler(store, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
	rec := httptest.NewRecorder()

	handler.GetRunHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary models.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 5, summary.Extracted)
}

func TestGetRunNotFound(t *testing.T) {
	handler := NewRunsHandler(newFakeRunStore(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	rec := httptest.NewRecorder()

	handler.GetRunHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
