package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ErrRunNotFound is returned when no summary exists for the requested ID
var ErrRunNotFound = errors.New("run summary not found")

// RunStorage persists run summaries in Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a RunStorage backed by the given connection
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStore {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, summary *models.RunSummary) error {
	if summary.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	if err := s.db.Store().Upsert(summary.ID, summary); err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, id string) (*models.RunSummary, error) {
	var summary models.RunSummary
	if err := s.db.Store().Get(id, &summary); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}
	return &summary, nil
}

// ListRuns returns summaries newest first, capped at limit when positive
func (s *RunStorage) ListRuns(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var summaries []models.RunSummary
	if err := s.db.Store().Find(&summaries, query); err != nil {
		return nil, fmt.Errorf("failed to list run summaries: %w", err)
	}

	result := make([]*models.RunSummary, len(summaries))
	for i := range summaries {
		result[i] = &summaries[i]
	}
	return result, nil
}

// DeleteRunsBefore removes summaries started before the cutoff and returns
// how many were deleted
func (s *RunStorage) DeleteRunsBefore(ctx context.Context, cutoffUnix int64) (int, error) {
	cutoff := time.Unix(cutoffUnix, 0)

	var stale []models.RunSummary
	if err := s.db.Store().Find(&stale, badgerhold.Where("StartedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find stale run summaries: %w", err)
	}

	deleted := 0
	for i := range stale {
		if err := s.db.Store().Delete(stale[i].ID, &models.RunSummary{}); err != nil {
			s.logger.Warn().Err(err).Str("run_id", stale[i].ID).Msg("Failed to delete stale run summary")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Debug().Int("deleted", deleted).Msg("Purged stale run summaries")
		if err := s.db.RunGC(); err != nil {
			s.logger.Warn().Err(err).Msg("Value-log GC after purge failed")
		}
	}
	return deleted, nil
}

func (s *RunStorage) Close() error {
	return nil
}
