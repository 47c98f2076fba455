package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/mapscout/internal/models"
)

// Control is the run-state machine gating discovery and extraction.
// Transitions: running ⇄ paused, running|paused → cancelled,
// running → completed. Terminal states admit no further transitions.
type Control struct {
	mu            sync.Mutex
	state         models.RunState
	pauseInterval time.Duration
}

// NewControl creates a state machine in the running state
func NewControl(pauseInterval time.Duration) *Control {
	if pauseInterval <= 0 {
		pauseInterval = 500 * time.Millisecond
	}
	return &Control{
		state:         models.RunStateRunning,
		pauseInterval: pauseInterval,
	}
}

// State returns the current run state
func (c *Control) State() models.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pause moves running → paused. Returns the resulting state; calling
// Pause on an already paused run is a no-op, terminal states are unchanged.
func (c *Control) Pause() models.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == models.RunStateRunning {
		c.state = models.RunStatePaused
	}
	return c.state
}

// Resume moves paused → running
func (c *Control) Resume() models.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == models.RunStatePaused {
		c.state = models.RunStateRunning
	}
	return c.state
}

// Cancel moves any non-terminal state to cancelled. Irreversible.
func (c *Control) Cancel() models.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Terminal() {
		c.state = models.RunStateCancelled
	}
	return c.state
}

// Complete moves running → completed. Set exclusively by the scheduler
// after all targets were processed without cancellation.
func (c *Control) Complete() models.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == models.RunStateRunning {
		c.state = models.RunStateCompleted
	}
	return c.state
}

// Gate is called at every loop head. It returns immediately while the run
// is running, polls at the configured interval while paused, and returns
// ErrRunCancelled once a cancel is observed so a cancel issued during a
// pause is honored promptly.
func (c *Control) Gate(ctx context.Context) error {
	for {
		switch c.State() {
		case models.RunStateRunning, models.RunStateCompleted:
			return nil
		case models.RunStateCancelled:
			return ErrRunCancelled
		case models.RunStatePaused:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.pauseInterval):
			}
		}
	}
}
