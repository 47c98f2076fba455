package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/common"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/models"
)

// StatusHandler reports service health and the active run, if any
type StatusHandler struct {
	scraperService interfaces.ScraperService
	logger         arbor.ILogger
	startedAt      time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(scraperService interfaces.ScraperService, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		scraperService: scraperService,
		logger:         logger,
		startedAt:      time.Now(),
	}
}

type statusResponse struct {
	Status     string                   `json:"status"`
	Version    string                   `json:"version"`
	UptimeSecs int64                    `json:"uptime_seconds"`
	Browser    string                   `json:"browser"`
	ActiveRun  *models.ProgressSnapshot `json:"active_run,omitempty"`
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	resp := statusResponse{
		Status:     "ok",
		Version:    common.GetVersion(),
		UptimeSecs: int64(time.Since(h.startedAt).Seconds()),
		Browser:    "idle",
	}

	if runID, ok := h.scraperService.ActiveRun(); ok {
		if snap, err := h.scraperService.Snapshot(runID); err == nil {
			resp.ActiveRun = snap
		}
		if h.scraperService.Healthy(r.Context()) {
			resp.Browser = "healthy"
		} else {
			resp.Browser = "unresponsive"
			resp.Status = "degraded"
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}
