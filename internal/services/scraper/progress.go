package scraper

import (
	"time"

	"github.com/ternarybob/mapscout/internal/models"
)

// Progress percentage bands: discovery occupies 0-10%, extraction maps
// linearly from 10% to 95% as targets are processed, terminal success is
// 100% and error is 0%.
const (
	discoveryStartPercent = 2
	discoveryDonePercent  = 10
	extractionEndPercent  = 95
)

// progressCounters are the raw inputs a snapshot is derived from
type progressCounters struct {
	Discovered int
	Extracted  int
	Skipped    int
	Total      int // targets the run will actually process, post-cap
	Errors     []string
}

// deriveSnapshot is a pure function of run counters. It never mutates state
// and is recomputed on every meaningful transition. The status tag and the
// execution phase are separate inputs: a paused run reports StatusPaused
// while its percent stays pinned to wherever the pipeline stopped, so the
// sequence a consumer sees never moves backwards across a pause.
func deriveSnapshot(runID string, status, phase models.RunStatus, step string, c progressCounters) *models.ProgressSnapshot {
	return &models.ProgressSnapshot{
		RunID:       runID,
		Status:      status,
		CurrentStep: step,
		Percent:     derivePercent(phase, c),
		Discovered:  c.Discovered,
		Extracted:   c.Extracted,
		Skipped:     c.Skipped,
		Errors:      c.Errors,
		Timestamp:   time.Now(),
	}
}

func derivePercent(phase models.RunStatus, c progressCounters) int {
	switch phase {
	case models.StatusCompleted:
		return 100
	case models.StatusError:
		return 0
	case models.StatusStarting:
		return 0
	case models.StatusDiscovering:
		if c.Discovered > 0 {
			return discoveryDonePercent
		}
		return discoveryStartPercent
	}

	// Extracting and cancelled report extraction progress so a consumer
	// sees where the run stopped. Skipped targets count as processed to
	// keep the sequence monotonic.
	if c.Total <= 0 {
		return discoveryDonePercent
	}
	processed := c.Extracted + c.Skipped
	if processed > c.Total {
		processed = c.Total
	}
	span := extractionEndPercent - discoveryDonePercent
	return discoveryDonePercent + processed*span/c.Total
}
