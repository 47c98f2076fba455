package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/models"
	"github.com/ternarybob/mapscout/internal/services/scraper"
	"github.com/ternarybob/mapscout/internal/storage/badger"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// fakeScraperService is a scripted ScraperService for handler tests
type fakeScraperService struct {
	startErr  error
	runID     string
	onStart   func()
	snapshots map[string]*models.ProgressSnapshot
	healthy   bool
}

func newFakeScraperService() *fakeScraperService {
	return &fakeScraperService{
		runID:     "run-test-1",
		snapshots: make(map[string]*models.ProgressSnapshot),
		healthy:   true,
	}
}

func (f *fakeScraperService) StartSearch(_ context.Context, _ *models.SearchRequest) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	if f.onStart != nil {
		f.onStart()
	}
	return f.runID, nil
}

func (f *fakeScraperService) snapshotFor(runID string, status models.RunStatus) (*models.ProgressSnapshot, error) {
	snap, ok := f.snapshots[runID]
	if !ok {
		return nil, scraper.ErrRunNotFound
	}
	if status != "" {
		snap.Status = status
	}
	return snap, nil
}

func (f *fakeScraperService) Pause(runID string) (*models.ProgressSnapshot, error) {
	return f.snapshotFor(runID, models.StatusPaused)
}

func (f *fakeScraperService) Resume(runID string) (*models.ProgressSnapshot, error) {
	return f.snapshotFor(runID, models.StatusExtracting)
}

func (f *fakeScraperService) Cancel(runID string) (*models.ProgressSnapshot, error) {
	return f.snapshotFor(runID, models.StatusCancelled)
}

func (f *fakeScraperService) ActiveRun() (string, bool) {
	for id := range f.snapshots {
		return id, true
	}
	return "", false
}

func (f *fakeScraperService) Snapshot(runID string) (*models.ProgressSnapshot, error) {
	return f.snapshotFor(runID, "")
}

func (f *fakeScraperService) Healthy(context.Context) bool {
	return f.healthy
}

func (f *fakeScraperService) Close() error {
	return nil
}

var _ interfaces.ScraperService = (*fakeScraperService)(nil)

// fakeRunStore is an in-memory RunStore for handler tests
type fakeRunStore struct {
	summaries map[string]*models.RunSummary
	listErr   error
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{summaries: make(map[string]*models.RunSummary)}
}

func (f *fakeRunStore) SaveRun(_ context.Context, summary *models.RunSummary) error {
	f.summaries[summary.ID] = summary
	return nil
}

func (f *fakeRunStore) GetRun(_ context.Context, id string) (*models.RunSummary, error) {
	summary, ok := f.summaries[id]
	if !ok {
		return nil, badger.ErrRunNotFound
	}
	return summary, nil
}

func (f *fakeRunStore) ListRuns(_ context.Context, limit int) ([]*models.RunSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	runs := make([]*models.RunSummary, 0, len(f.summaries))
	for _, summary := range f.summaries {
		runs = append(runs, summary)
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (f *fakeRunStore) DeleteRunsBefore(_ context.Context, cutoffUnix int64) (int, error) {
	deleted := 0
	for id, summary := range f.summaries {
		if summary.StartedAt.Before(time.Unix(cutoffUnix, 0)) {
			delete(f.summaries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeRunStore) Close() error {
	return nil
}

var _ interfaces.RunStore = (*fakeRunStore)(nil)
