package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/storage/badger"
)

const defaultRunListLimit = 50

// RunsHandler serves the persisted run history
type RunsHandler struct {
	store  interfaces.RunStore // nil when history is disabled
	logger arbor.ILogger
}

// NewRunsHandler creates a new run history handler
func NewRunsHandler(store interfaces.RunStore, logger arbor.ILogger) *RunsHandler {
	return &RunsHandler{
		store:  store,
		logger: logger,
	}
}

// ListRunsHandler handles GET /api/runs?limit=N
func (h *RunsHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if h.store == nil {
		WriteError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	limit := GetLimitParam(r, defaultRunListLimit)
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Run history listing failed")
		WriteError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// GetRunHandler handles GET /api/runs/{id}
func (h *RunsHandler) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if h.store == nil {
		WriteError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	summary, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, badger.ErrRunNotFound) {
			WriteError(w, http.StatusNotFound, "no run with ID "+id)
			return
		}
		h.logger.Warn().Err(err).Str("run_id", id).Msg("Run summary lookup failed")
		WriteError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}
