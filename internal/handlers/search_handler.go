package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/models"
)

// ssePingInterval keeps idle proxies from dropping the stream
const ssePingInterval = 15 * time.Second

// SearchHandler starts extraction runs and streams their progress over SSE
type SearchHandler struct {
	scraperService interfaces.ScraperService
	eventService   interfaces.EventService
	logger         arbor.ILogger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(scraperService interfaces.ScraperService, eventService interfaces.EventService, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		scraperService: scraperService,
		eventService:   eventService,
		logger:         logger,
	}
}

// SearchHandler handles POST /api/search. The response is a server-sent
// event stream: a "run" frame with the run ID, "progress" frames while the
// run executes, then a single terminal "complete" or "error" frame.
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Subscribe before starting so no early event is missed
	stream := make(chan interfaces.Event, 256)
	subscribe := func(eventType interfaces.EventType) string {
		return h.eventService.Subscribe(eventType, func(_ context.Context, event interfaces.Event) error {
			select {
			case stream <- event:
			default:
				h.logger.Debug().Str("event_type", string(event.Type)).Msg("SSE stream buffer full, event dropped")
			}
			return nil
		})
	}

	progressSub := subscribe(interfaces.EventSearchProgress)
	completeSub := subscribe(interfaces.EventSearchComplete)
	errorSub := subscribe(interfaces.EventSearchError)
	defer func() {
		h.eventService.Unsubscribe(interfaces.EventSearchProgress, progressSub)
		h.eventService.Unsubscribe(interfaces.EventSearchComplete, completeSub)
		h.eventService.Unsubscribe(interfaces.EventSearchError, errorSub)
	}()

	runID, err := h.scraperService.StartSearch(r.Context(), &req)
	if err != nil {
		category := models.CategoryOf(err)
		WriteError(w, statusForCategory(category), models.MessageOf(err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error().Msg("Response writer does not support flushing, SSE unavailable")
		return
	}

	h.sendEvent(w, flusher, "run", map[string]string{"run_id": runID})

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			// The run keeps executing; clients can reattach via /ws or
			// poll /api/status
			h.logger.Debug().Str("run_id", runID).Msg("SSE client disconnected")
			return

		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case event := <-stream:
			switch payload := event.Payload.(type) {
			case *models.ProgressSnapshot:
				if payload.RunID != runID {
					continue
				}
				h.sendEvent(w, flusher, "progress", payload)

			case *models.SearchResult:
				if payload.RunID != runID {
					continue
				}
				h.sendEvent(w, flusher, "complete", payload)
				return

			case *models.SearchFailure:
				if payload.RunID != runID {
					continue
				}
				h.sendEvent(w, flusher, "error", payload)
				return
			}
		}
	}
}

func (h *SearchHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", event).Msg("Failed to marshal SSE payload")
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

// statusForCategory maps run error categories to HTTP status codes
func statusForCategory(category models.ErrorCategory) int {
	switch category {
	case models.ErrCategoryInvalidParams:
		return http.StatusBadRequest
	case models.ErrCategoryNotEnabled:
		return http.StatusServiceUnavailable
	case models.ErrCategoryNoResults:
		return http.StatusNotFound
	case models.ErrCategoryTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCategoryAccessBlocked:
		return http.StatusTooManyRequests
	case models.ErrCategoryConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
