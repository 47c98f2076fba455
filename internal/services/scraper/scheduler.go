package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/common"
	"github.com/ternarybob/mapscout/internal/models"
)

// maxConcurrencyCeiling is the hard cap on parallel extraction pages;
// larger batches draw anti-bot attention and burn memory
const maxConcurrencyCeiling = 5

// targetExtractor lets scheduler tests substitute the real extractor
type targetExtractor interface {
	Extract(ctx context.Context, page Page, link string, index, total int, policy *RetryPolicy) (*models.BusinessRecord, error)
}

// scheduler turns the ordered target list into records within maxResults,
// honoring the concurrency ceiling. Records and counters are written only
// by the coordinating goroutine after awaiting batch completion, so no
// locking is needed across batches.
type scheduler struct {
	cfg       common.ScraperConfig
	logger    arbor.ILogger
	browser   Browser
	extractor targetExtractor
	control   *Control
	pacer     *pacer
	emit      func(extracted, skipped, total int)

	sequentialPolicy *RetryPolicy
	parallelPolicy   *RetryPolicy
}

func newScheduler(cfg common.ScraperConfig, logger arbor.ILogger, browser Browser, extractor targetExtractor, control *Control, emit func(int, int, int)) *scheduler {
	if emit == nil {
		emit = func(int, int, int) {}
	}
	return &scheduler{
		cfg:       cfg,
		logger:    logger,
		browser:   browser,
		extractor: extractor,
		control:   control,
		pacer:     newPacer(cfg),
		emit:      emit,
		sequentialPolicy: &RetryPolicy{
			MaxAttempts:    cfg.RetryAttempts,
			Delay:          cfg.RetryDelay,
			BlockedBackoff: cfg.BlockedBackoff,
		},
		parallelPolicy: &RetryPolicy{
			MaxAttempts:    cfg.ParallelRetryAttempts,
			Delay:          cfg.RetryDelay,
			BlockedBackoff: cfg.BlockedBackoff,
		},
	}
}

// run processes targets in concurrency-bounded batches. It returns the
// collected records, the skipped count, and an error that is either
// ErrRunCancelled (clean early termination, records retained) or a
// session-fatal failure. On a nil error the control state has been moved
// to completed.
func (s *scheduler) run(ctx context.Context, links []string, maxResults int) ([]*models.BusinessRecord, int, error) {
	if maxResults > 0 && len(links) > maxResults {
		links = links[:maxResults]
	}

	total := len(links)
	concurrency := s.cfg.MaxConcurrentScrapers
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxConcurrencyCeiling {
		concurrency = maxConcurrencyCeiling
	}

	records := make([]*models.BusinessRecord, 0, total)
	skipped := 0

	s.logger.Info().
		Int("targets", total).
		Int("concurrency", concurrency).
		Msg("Starting extraction")

	for batchStart := 0; batchStart < total; batchStart += concurrency {
		if err := s.control.Gate(ctx); err != nil {
			return records, skipped, err
		}

		if err := s.browser.EnsureHealthy(ctx); err != nil {
			return records, skipped, fmt.Errorf("browser unrecoverable before batch: %w", err)
		}

		batchEnd := batchStart + concurrency
		if batchEnd > total {
			batchEnd = total
		}
		batch := links[batchStart:batchEnd]

		var batchRecords []*models.BusinessRecord
		var batchSkipped int
		var err error

		pages := s.openBatchPages(ctx, len(batch))
		if len(pages) >= 2 {
			batchRecords, batchSkipped, err = s.runParallelBatch(ctx, pages, batch, batchStart, total, len(records), skipped)
		} else {
			s.closePages(pages)
			batchRecords, batchSkipped, err = s.runSequentialBatch(ctx, batch, batchStart, total, len(records), skipped)
		}

		records = append(records, batchRecords...)
		skipped += batchSkipped
		s.emit(len(records), skipped, total)

		if err != nil {
			return records, skipped, err
		}

		if batchEnd < total {
			if serr := s.pacer.sleep(ctx, s.cfg.BatchDelay); serr != nil {
				return records, skipped, serr
			}
		}
	}

	s.control.Complete()

	s.logger.Info().
		Int("extracted", len(records)).
		Int("skipped", skipped).
		Msg("Extraction finished")

	return records, skipped, nil
}

// openBatchPages attempts one auxiliary page per batch member. Partial
// success is fine; fewer than two pages makes the batch fall back to the
// sequential path.
func (s *scheduler) openBatchPages(ctx context.Context, want int) []Page {
	if want < 2 {
		return nil
	}

	pages := make([]Page, 0, want)
	for i := 0; i < want; i++ {
		page, err := s.browser.NewPage(ctx)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Int("opened", len(pages)).
				Int("wanted", want).
				Msg("Auxiliary page creation failed")
			break
		}
		pages = append(pages, page)
	}
	return pages
}

func (s *scheduler) closePages(pages []Page) {
	for _, page := range pages {
		if err := page.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Page close failed")
		}
	}
}

// runParallelBatch dispatches all batch members concurrently, each against
// its own exclusively-owned page, then collects settled results. Fulfilled
// extractions are kept; failed or nil results are dropped and logged.
func (s *scheduler) runParallelBatch(ctx context.Context, pages []Page, batch []string, offset, total, doneSoFar, skippedSoFar int) ([]*models.BusinessRecord, int, error) {
	defer s.closePages(pages)

	// Some members fall back to the shared slot count when fewer pages
	// opened than batch members
	results := make([]*models.BusinessRecord, len(batch))
	errs := make([]error, len(batch))

	var wg sync.WaitGroup
	for i, link := range batch {
		if i >= len(pages) {
			errs[i] = ErrPageCreation
			continue
		}

		wg.Add(1)
		go func(slot int, target string, page Page) {
			defer wg.Done()

			// A cancel observed before this member starts means it is
			// never processed
			if s.control.State() == models.RunStateCancelled {
				errs[slot] = ErrRunCancelled
				return
			}

			if err := s.pacer.wait(ctx); err != nil {
				errs[slot] = err
				return
			}

			record, err := s.extractor.Extract(ctx, page, target, offset+slot, total, s.parallelPolicy)
			results[slot] = record
			errs[slot] = err
		}(i, link, pages[i])
	}
	wg.Wait()

	var records []*models.BusinessRecord
	skipped := 0
	for i, record := range results {
		switch {
		case record != nil:
			records = append(records, record)
		case errors.Is(errs[i], ErrRunCancelled):
			// Not processed; neither extracted nor skipped
		default:
			skipped++
			s.logger.Warn().
				Err(errs[i]).
				Int("index", offset+i+1).
				Int("total", total).
				Msg("Target skipped after retries")
		}
		s.emit(doneSoFar+len(records), skippedSoFar+skipped, total)
	}

	if s.control.State() == models.RunStateCancelled {
		return records, skipped, ErrRunCancelled
	}
	return records, skipped, nil
}

// runSequentialBatch extracts batch members one at a time on the shared
// control page, pacing each item with a jittered, progress-scaled delay
func (s *scheduler) runSequentialBatch(ctx context.Context, batch []string, offset, total, doneSoFar, skippedSoFar int) ([]*models.BusinessRecord, int, error) {
	var records []*models.BusinessRecord
	skipped := 0

	page := s.browser.ControlPage()

	for i, link := range batch {
		if err := s.control.Gate(ctx); err != nil {
			return records, skipped, err
		}

		if err := s.pacer.wait(ctx); err != nil {
			return records, skipped, err
		}

		record, err := s.extractor.Extract(ctx, page, link, offset+i, total, s.sequentialPolicy)
		if errors.Is(err, ErrRunCancelled) {
			return records, skipped, err
		}
		if record != nil {
			records = append(records, record)
		} else {
			skipped++
			s.logger.Warn().
				Err(err).
				Int("index", offset+i+1).
				Int("total", total).
				Msg("Target skipped after retries")
		}
		s.emit(doneSoFar+len(records), skippedSoFar+skipped, total)

		processed := offset + i + 1
		if processed < total {
			if serr := s.pacer.sleep(ctx, s.pacer.itemDelay(processed, total)); serr != nil {
				return records, skipped, serr
			}
		}
	}

	return records, skipped, nil
}
