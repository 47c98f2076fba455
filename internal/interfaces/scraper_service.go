package interfaces

import (
	"context"

	"github.com/ternarybob/mapscout/internal/models"
)

// ScraperService orchestrates browser-driven map extraction runs.
// Runs execute asynchronously; progress and terminal payloads are published
// on the event bus and the run registry answers control commands.
type ScraperService interface {
	// StartSearch validates the request, registers a run and starts it in
	// the background. Returns the run ID, or a categorized error when no
	// run could be started.
	StartSearch(ctx context.Context, req *models.SearchRequest) (string, error)

	// Pause, Resume and Cancel address the identified run. Each is
	// idempotent, returns the snapshot after the transition, and fails
	// with ErrRunNotFound for unknown or finished runs.
	Pause(runID string) (*models.ProgressSnapshot, error)
	Resume(runID string) (*models.ProgressSnapshot, error)
	Cancel(runID string) (*models.ProgressSnapshot, error)

	// ActiveRun returns the ID of the currently executing run, if any
	ActiveRun() (string, bool)

	// Snapshot returns the current progress of the identified run
	Snapshot(runID string) (*models.ProgressSnapshot, error)

	// Healthy reports whether the browser session responds
	Healthy(ctx context.Context) bool

	// Close cancels any active run and releases the browser
	Close() error
}

// RunStore persists run summaries for the history API
type RunStore interface {
	SaveRun(ctx context.Context, summary *models.RunSummary) error
	GetRun(ctx context.Context, id string) (*models.RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]*models.RunSummary, error)
	DeleteRunsBefore(ctx context.Context, cutoffUnix int64) (int, error)
	Close() error
}
