package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/models"
	"github.com/ternarybob/mapscout/internal/services/events"
)

func TestSearchHandlerRejectsInvalidJSON(t *testing.T) {
	handler := NewSearchHandler(newFakeScraperService(), events.NewService(testLogger()), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.SearchHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandlerRequiresPost(t *testing.T) {
	handler := NewSearchHandler(newFakeScraperService(), events.NewService(testLogger()), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	rec := httptest.NewRecorder()

	handler.SearchHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSearchHandlerStartFailureStatusCodes(t *testing.T) {
	tests := []struct {
		category models.ErrorCategory
		want     int
	}{
		{models.ErrCategoryInvalidParams, http.StatusBadRequest},
		{models.ErrCategoryNotEnabled, http.StatusServiceUnavailable},
		{models.ErrCategoryConnection, http.StatusBadGateway},
		{models.ErrCategoryFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			svc := newFakeScraperService()
			svc.startErr = models.NewScrapeError(tt.category, "nope", nil)
			handler := NewSearchHandler(svc, events.NewService(testLogger()), testLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/search",
				strings.NewReader(`{"location":"Springfield"}`))
			rec := httptest.NewRecorder()

			handler.SearchHandler(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSearchHandlerStreamsTerminalEvent(t *testing.T) {
	eventService := events.NewService(testLogger())
	svc := newFakeScraperService()
	svc.runID = "run-sse"

	// Publish the run's lifecycle once the handler has started the search;
	// subscription happens before StartSearch so nothing is missed
	svc.onStart = func() {
		go func() {
			eventService.PublishSync(context.Background(), interfaces.Event{
				Type: interfaces.EventSearchProgress,
				Payload: &models.ProgressSnapshot{
					RunID:  "run-sse",
					Status: models.StatusExtracting,
				},
			})
			eventService.PublishSync(context.Background(), interfaces.Event{
				Type: interfaces.EventSearchComplete,
				Payload: &models.SearchResult{
					RunID: "run-sse",
					Query: "coffee near Springfield",
				},
			})
		}()
	}

	handler := NewSearchHandler(svc, eventService, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"location":"Springfield","categories":["coffee"]}`))
	rec := httptest.NewRecorder()

	// SearchHandler returns once the terminal frame has been written
	handler.SearchHandler(rec, req)

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: run")
	assert.Contains(t, body, `"run_id":"run-sse"`)
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, "coffee near Springfield")
}

func TestSearchHandlerIgnoresOtherRunsEvents(t *testing.T) {
	eventService := events.NewService(testLogger())
	svc := newFakeScraperService()
	svc.runID = "run-mine"

	svc.onStart = func() {
		go func() {
			eventService.PublishSync(context.Background(), interfaces.Event{
				Type:    interfaces.EventSearchError,
				Payload: &models.SearchFailure{RunID: "run-other", Message: "other failure"},
			})
			eventService.PublishSync(context.Background(), interfaces.Event{
				Type:    interfaces.EventSearchComplete,
				Payload: &models.SearchResult{RunID: "run-mine"},
			})
		}()
	}

	handler := NewSearchHandler(svc, eventService, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"location":"Springfield"}`))
	rec := httptest.NewRecorder()

	handler.SearchHandler(rec, req)

	body := rec.Body.String()
	assert.NotContains(t, body, "other failure")
	assert.Contains(t, body, "event: complete")
}
