package models

import "time"

// RunStatus is the status tag carried on progress snapshots
type RunStatus string

const (
	StatusStarting    RunStatus = "starting"
	StatusDiscovering RunStatus = "discovering"
	StatusExtracting  RunStatus = "extracting"
	StatusPaused      RunStatus = "paused"
	StatusCompleted   RunStatus = "completed"
	StatusCancelled   RunStatus = "cancelled"
	StatusError       RunStatus = "error"
)

// ProgressSnapshot is a derived, point-in-time view of a run. Recomputed
// and emitted on every meaningful transition; never stored.
type ProgressSnapshot struct {
	RunID       string    `json:"run_id"`
	Status      RunStatus `json:"status"`
	CurrentStep string    `json:"current_step"`
	Percent     int       `json:"percent"`
	Discovered  int       `json:"discovered"`
	Extracted   int       `json:"extracted"`
	Skipped     int       `json:"skipped"`
	Errors      []string  `json:"errors,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
