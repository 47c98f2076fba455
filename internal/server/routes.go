package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Search (SSE stream + run control)
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler) // POST - start run, stream progress
	mux.HandleFunc("/api/search/", s.app.ControlHandler.CommandHandler)

	// API routes - Run history
	mux.HandleFunc("/api/runs", s.app.RunsHandler.ListRunsHandler)
	mux.HandleFunc("/api/runs/", s.handleRunRoutes)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/health", s.healthHandler)
	mux.HandleFunc("/api/version", s.versionHandler)

	return mux
}

// handleRunRoutes routes /api/runs/{id}
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	if id == "" {
		s.app.RunsHandler.ListRunsHandler(w, r)
		return
	}
	s.app.RunsHandler.GetRunHandler(w, r)
}
