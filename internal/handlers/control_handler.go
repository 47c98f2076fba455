package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/models"
	"github.com/ternarybob/mapscout/internal/services/scraper"
)

// ControlHandler serves the pause/resume/cancel commands for live runs
type ControlHandler struct {
	scraperService interfaces.ScraperService
	logger         arbor.ILogger
}

// NewControlHandler creates a new control handler
func NewControlHandler(scraperService interfaces.ScraperService, logger arbor.ILogger) *ControlHandler {
	return &ControlHandler{
		scraperService: scraperService,
		logger:         logger,
	}
}

// CommandHandler handles POST /api/search/{id}/pause, /resume, /cancel and
// GET /api/search/{id} for the current snapshot
func (h *ControlHandler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/search/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 0 || parts[0] == "" {
		WriteError(w, http.StatusBadRequest, "run ID is required")
		return
	}
	runID := parts[0]

	if len(parts) == 1 {
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		snap, err := h.scraperService.Snapshot(runID)
		if err != nil {
			h.writeCommandError(w, runID, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
		return
	}

	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	command := parts[1]
	var snap *models.ProgressSnapshot
	var err error

	switch command {
	case "pause":
		snap, err = h.scraperService.Pause(runID)
	case "resume":
		snap, err = h.scraperService.Resume(runID)
	case "cancel":
		snap, err = h.scraperService.Cancel(runID)
	default:
		WriteError(w, http.StatusNotFound, "unknown command: "+command)
		return
	}

	if err != nil {
		h.writeCommandError(w, runID, err)
		return
	}

	h.logger.Info().
		Str("run_id", runID).
		Str("command", command).
		Str("status", string(snap.Status)).
		Msg("Run control command handled")

	WriteJSON(w, http.StatusOK, snap)
}

func (h *ControlHandler) writeCommandError(w http.ResponseWriter, runID string, err error) {
	if errors.Is(err, scraper.ErrRunNotFound) {
		WriteError(w, http.StatusNotFound, "no live run with ID "+runID)
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}
