package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/common"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/models"
)

// Service is the extraction orchestrator. It owns the run registry, builds
// the per-run pipeline (session, discovery, scheduler) and publishes
// progress and terminal payloads on the event bus.
type Service struct {
	cfg      *common.Config
	logger   arbor.ILogger
	events   interfaces.EventService
	store    interfaces.RunStore // nil when history is disabled
	validate *validator.Validate
	registry *runRegistry

	// newBrowser is a factory so tests can substitute a fake session
	newBrowser func() Browser

	mu      sync.Mutex
	browser Browser // browser of the active run, for health reporting
	closed  bool
}

// NewService creates the orchestrator service
func NewService(cfg *common.Config, events interfaces.EventService, store interfaces.RunStore, logger arbor.ILogger) *Service {
	s := &Service{
		cfg:      cfg,
		logger:   logger,
		events:   events,
		store:    store,
		validate: validator.New(),
		registry: newRunRegistry(),
	}
	s.newBrowser = func() Browser {
		return NewSession(cfg.Scraper, logger)
	}
	return s
}

// StartSearch validates the request, registers a run and launches it in
// the background. Exactly one run may be live at a time.
func (s *Service) StartSearch(ctx context.Context, req *models.SearchRequest) (string, error) {
	if !s.cfg.Scraper.Enabled {
		return "", models.NewScrapeError(models.ErrCategoryNotEnabled,
			"scraping is disabled; enable [scraper] in the configuration", nil)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", models.NewScrapeError(models.ErrCategoryFailure, "service is shutting down", nil)
	}
	s.mu.Unlock()

	if err := s.validate.Struct(req); err != nil {
		return "", models.NewScrapeError(models.ErrCategoryInvalidParams,
			fmt.Sprintf("invalid search request: %v", err), err)
	}

	if active, ok := s.registry.active(); ok {
		return "", models.NewScrapeError(models.ErrCategoryInvalidParams,
			fmt.Sprintf("a search is already in progress (%s); cancel it first", active.id), nil)
	}

	r := newRun(common.NewRunID(), req, NewControl(s.cfg.Scraper.PauseCheckInterval))
	s.registry.add(r)

	s.logger.Info().
		Str("run_id", r.id).
		Str("query", req.Query()).
		Str("mode", string(req.Mode)).
		Int("max_results", req.MaxResults).
		Msg("Search run registered")

	common.SafeGo(s.logger, "scrape-run-"+r.id, func() {
		s.execute(r)
	})

	return r.id, nil
}

// execute drives a run from browser open through terminal payload. It owns
// all writes to the run's record list and counters.
func (s *Service) execute(r *run) {
	// Runs outlive the HTTP request that started them; consumers follow
	// along on the event bus
	ctx := context.Background()

	start := time.Now()
	s.publishProgress(r)

	browser := s.newBrowser()
	s.setBrowser(browser)
	defer func() {
		s.setBrowser(nil)
		if err := browser.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Browser close failed")
		}
		s.registry.remove(r.id)
	}()

	if err := browser.Open(ctx); err != nil {
		s.finishError(r, nil, models.NewScrapeError(models.ErrCategoryConnection,
			"browser failed to launch; check the Chrome installation", err))
		return
	}

	maxResults := r.req.EffectiveMax(s.cfg.Scraper.MaxResults)
	searchURL := r.req.SearchURL(s.cfg.Scraper.BaseURL, s.cfg.Scraper.Language)

	r.setPhase(models.StatusDiscovering, "Loading results page")
	s.publishProgress(r)

	page := browser.ControlPage()
	if err := page.Navigate(ctx, searchURL); err != nil {
		s.finishError(r, nil, categorizeNavigation(err))
		return
	}

	extractor := NewExtractor(s.cfg.Scraper, s.logger)
	if err := extractor.checkBlocked(ctx, page); err != nil {
		s.finishError(r, nil, models.NewScrapeError(models.ErrCategoryAccessBlocked,
			"the map source is blocking automated access; try conservative mode later", err))
		return
	}

	r.setPhase(models.StatusDiscovering, "Scrolling for results")
	engine := newDiscoveryEngine(s.cfg.Scraper, s.logger, r.control, func(discovered int) {
		r.update(func(c *progressCounters) { c.Discovered = discovered })
		s.publishProgress(r)
	})

	links, err := engine.Discover(ctx, page, maxResults)
	if err != nil {
		if errors.Is(err, ErrRunCancelled) {
			s.finishCancelled(r, nil, 0, start)
			return
		}
		s.finishError(r, nil, models.NewScrapeError(models.ErrCategoryFailure,
			"result discovery failed", err))
		return
	}

	if len(links) == 0 {
		s.finishError(r, nil, models.NewScrapeError(models.ErrCategoryNoResults,
			"no results found for this search; widen the location or categories", nil))
		return
	}

	total := len(links)
	if total > maxResults {
		total = maxResults
	}
	r.update(func(c *progressCounters) {
		c.Discovered = len(links)
		c.Total = total
	})
	r.setPhase(models.StatusExtracting, "Extracting business details")
	s.publishProgress(r)

	sched := newScheduler(s.cfg.Scraper, s.logger, browser, extractor, r.control, func(extracted, skipped, schedTotal int) {
		r.update(func(c *progressCounters) {
			c.Extracted = extracted
			c.Skipped = skipped
			c.Total = schedTotal
		})
		s.publishProgress(r)
	})

	records, skipped, err := sched.run(ctx, links, maxResults)
	switch {
	case err == nil:
		s.finishCompleted(r, records, skipped, start)
	case errors.Is(err, ErrRunCancelled):
		s.finishCancelled(r, records, skipped, start)
	default:
		s.finishError(r, records, models.NewScrapeError(models.ErrCategoryConnection,
			"browser session was lost and could not be recovered", err))
	}
}

// Pause transitions the identified run to paused
func (s *Service) Pause(runID string) (*models.ProgressSnapshot, error) {
	r, ok := s.registry.get(runID)
	if !ok {
		return nil, ErrRunNotFound
	}

	state := r.control.Pause()
	s.logger.Info().Str("run_id", runID).Str("state", string(state)).Msg("Pause command applied")
	s.publishStateChange(r, state)
	return r.snapshot(), nil
}

// Resume transitions the identified run back to running
func (s *Service) Resume(runID string) (*models.ProgressSnapshot, error) {
	r, ok := s.registry.get(runID)
	if !ok {
		return nil, ErrRunNotFound
	}

	state := r.control.Resume()
	s.logger.Info().Str("run_id", runID).Str("state", string(state)).Msg("Resume command applied")
	s.publishStateChange(r, state)
	return r.snapshot(), nil
}

// Cancel irreversibly cancels the identified run; records collected so far
// are retained
func (s *Service) Cancel(runID string) (*models.ProgressSnapshot, error) {
	r, ok := s.registry.get(runID)
	if !ok {
		return nil, ErrRunNotFound
	}

	state := r.control.Cancel()
	s.logger.Info().Str("run_id", runID).Str("state", string(state)).Msg("Cancel command applied")
	s.publishStateChange(r, state)
	return r.snapshot(), nil
}

// ActiveRun returns the ID of the live run, if any
func (s *Service) ActiveRun() (string, bool) {
	if r, ok := s.registry.active(); ok {
		return r.id, true
	}
	return "", false
}

// Snapshot returns the current progress of the identified run
func (s *Service) Snapshot(runID string) (*models.ProgressSnapshot, error) {
	r, ok := s.registry.get(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	return r.snapshot(), nil
}

// Healthy reports whether the active run's browser responds; true when no
// browser is open since there is nothing to be unhealthy
func (s *Service) Healthy(ctx context.Context) bool {
	s.mu.Lock()
	browser := s.browser
	s.mu.Unlock()

	if browser == nil {
		return true
	}
	return browser.HealthCheck(ctx)
}

// Close cancels any live run and marks the service as shutting down
func (s *Service) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if r, ok := s.registry.active(); ok {
		s.logger.Info().Str("run_id", r.id).Msg("Cancelling active run for shutdown")
		r.control.Cancel()
	}
	return nil
}

func (s *Service) setBrowser(b Browser) {
	s.mu.Lock()
	s.browser = b
	s.mu.Unlock()
}

func (s *Service) publishProgress(r *run) {
	snap := r.snapshot()
	if err := s.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventSearchProgress,
		Payload: snap,
	}); err != nil {
		s.logger.Debug().Err(err).Msg("Progress publish failed")
	}
}

func (s *Service) publishStateChange(r *run, state models.RunState) {
	if err := s.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunStateChange,
		Payload: map[string]string{"run_id": r.id, "state": string(state)},
	}); err != nil {
		s.logger.Debug().Err(err).Msg("State change publish failed")
	}
	s.publishProgress(r)
}

func (s *Service) finishCompleted(r *run, records []*models.BusinessRecord, skipped int, start time.Time) {
	r.setPhase(models.StatusCompleted, "Search completed")
	s.publishProgress(r)

	result := &models.SearchResult{
		RunID:    r.id,
		Query:    r.req.Query(),
		Records:  records,
		Duration: time.Since(start),
	}
	if skipped > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d targets were skipped after repeated extraction failures", skipped))
	}

	s.publishTerminal(interfaces.EventSearchComplete, result)
	s.saveSummary(r, models.StatusCompleted, "")

	s.logger.Info().
		Str("run_id", r.id).
		Int("records", len(records)).
		Int("skipped", skipped).
		Dur("duration", time.Since(start)).
		Msg("Run completed")
}

// finishCancelled ends a run cleanly on user cancellation, preserving the
// partial result set
func (s *Service) finishCancelled(r *run, records []*models.BusinessRecord, skipped int, start time.Time) {
	r.setPhase(models.StatusCancelled, "Search cancelled")
	s.publishProgress(r)

	result := &models.SearchResult{
		RunID:    r.id,
		Query:    r.req.Query(),
		Records:  records,
		Warnings: []string{"search was cancelled before completion; results are partial"},
		Duration: time.Since(start),
	}

	s.publishTerminal(interfaces.EventSearchComplete, result)
	s.saveSummary(r, models.StatusCancelled, "")

	s.logger.Info().
		Str("run_id", r.id).
		Int("records", len(records)).
		Int("skipped", skipped).
		Msg("Run cancelled")
}

func (s *Service) finishError(r *run, partial []*models.BusinessRecord, serr *models.ScrapeError) {
	r.update(func(c *progressCounters) {
		c.Errors = append(c.Errors, serr.Message)
	})
	r.setPhase(models.StatusError, "Search failed")
	s.publishProgress(r)

	failure := &models.SearchFailure{
		RunID:    r.id,
		Category: serr.Category,
		Message:  serr.Message,
		Partial:  partial,
	}

	s.publishTerminal(interfaces.EventSearchError, failure)
	s.saveSummary(r, models.StatusError, serr.Message)

	s.logger.Error().
		Str("run_id", r.id).
		Str("category", string(serr.Category)).
		Err(serr).
		Msg("Run failed")
}

func (s *Service) publishTerminal(eventType interfaces.EventType, payload interface{}) {
	if err := s.events.PublishSync(context.Background(), interfaces.Event{
		Type:    eventType,
		Payload: payload,
	}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Terminal event publish failed")
	}
}

func (s *Service) saveSummary(r *run, status models.RunStatus, errMsg string) {
	if s.store == nil {
		return
	}

	r.mu.Lock()
	counters := r.counters
	r.mu.Unlock()

	summary := &models.RunSummary{
		ID:          r.id,
		Query:       r.req.Query(),
		Location:    r.req.Location,
		Mode:        string(r.req.Mode),
		Status:      status,
		Discovered:  counters.Discovered,
		Extracted:   counters.Extracted,
		Skipped:     counters.Skipped,
		Error:       errMsg,
		StartedAt:   r.startedAt,
		CompletedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.SaveRun(ctx, summary); err != nil {
		s.logger.Warn().Err(err).Str("run_id", r.id).Msg("Run summary save failed")
	}
}

// categorizeNavigation maps a failed results-page navigation to a
// caller-visible category
func categorizeNavigation(err error) *models.ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
		return models.NewScrapeError(models.ErrCategoryTimeout,
			"the results page took too long to load; try again or narrow the search", err)
	}
	return models.NewScrapeError(models.ErrCategoryConnection,
		"could not reach the map source; check network connectivity", err)
}
