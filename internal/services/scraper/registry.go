package scraper

import (
	"sync"
	"time"

	"github.com/ternarybob/mapscout/internal/models"
)

// run is one live extraction run tracked by the registry
type run struct {
	id        string
	req       *models.SearchRequest
	control   *Control
	startedAt time.Time

	mu       sync.Mutex
	phase    models.RunStatus // starting/discovering/extracting
	step     string
	counters progressCounters
}

func newRun(id string, req *models.SearchRequest, control *Control) *run {
	return &run{
		id:        id,
		req:       req,
		control:   control,
		startedAt: time.Now(),
		phase:     models.StatusStarting,
		step:      "Preparing browser session",
	}
}

// setPhase records the current execution phase and step description
func (r *run) setPhase(phase models.RunStatus, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = phase
	r.step = step
}

// update mutates the run counters under the run lock
func (r *run) update(fn func(c *progressCounters)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.counters)
}

// snapshot derives the externally visible progress view. The control state
// overrides the status tag so paused and cancelled runs report themselves
// as such, while the percent is still derived from the execution phase so
// it never regresses across a pause.
func (r *run) snapshot() *models.ProgressSnapshot {
	r.mu.Lock()
	phase := r.phase
	step := r.step
	counters := r.counters
	counters.Errors = append([]string(nil), r.counters.Errors...)
	r.mu.Unlock()

	status := phase
	switch r.control.State() {
	case models.RunStatePaused:
		status = models.StatusPaused
	case models.RunStateCancelled:
		status = models.StatusCancelled
	case models.RunStateCompleted:
		status = models.StatusCompleted
	}

	return deriveSnapshot(r.id, status, phase, step, counters)
}

// runRegistry tracks live runs by ID so control commands can reach an
// in-flight run without ambient global state
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*run
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*run)}
}

func (reg *runRegistry) add(r *run) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[r.id] = r
}

func (reg *runRegistry) get(id string) (*run, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.runs[id]
	return r, ok
}

func (reg *runRegistry) remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.runs, id)
}

// active returns the single non-terminal run, if one exists
func (reg *runRegistry) active() (*run, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, r := range reg.runs {
		if !r.control.State().Terminal() {
			return r, true
		}
	}
	return nil, false
}
