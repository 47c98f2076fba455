package models

import "time"

// RunState is the control state of a live run.
// Transitions: running ⇄ paused; running|paused → cancelled; running → completed.
// No transition leaves cancelled or completed.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStatePaused    RunState = "paused"
	RunStateCancelled RunState = "cancelled"
	RunStateCompleted RunState = "completed"
)

// Terminal reports whether the state admits no further transitions
func (s RunState) Terminal() bool {
	return s == RunStateCancelled || s == RunStateCompleted
}

// RunSummary is the persisted operational record of one run. Extracted
// business records themselves are never persisted; only counts and timing.
type RunSummary struct {
	ID          string    `json:"id" badgerhold:"key"`
	Query       string    `json:"query"`
	Location    string    `json:"location"`
	Mode        string    `json:"mode"`
	Status      RunStatus `json:"status"`
	Discovered  int       `json:"discovered"`
	Extracted   int       `json:"extracted"`
	Skipped     int       `json:"skipped"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}
