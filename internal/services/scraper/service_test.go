package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/mapscout/internal/common"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/models"
	"github.com/ternarybob/mapscout/internal/services/events"
)

func testConfig() *common.Config {
	return &common.Config{Scraper: testScraperConfig()}
}

func newTestService(browser Browser) *Service {
	svc := NewService(testConfig(), events.NewService(testLogger()), nil, testLogger())
	svc.newBrowser = func() Browser { return browser }
	return svc
}

// gateBrowser blocks Open until released so tests can hold a run live
type gateBrowser struct {
	*fakeBrowser
	release chan struct{}
}

func newGateBrowser() *gateBrowser {
	return &gateBrowser{fakeBrowser: newFakeBrowser(0), release: make(chan struct{})}
}

func (b *gateBrowser) Open(ctx context.Context) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.fakeBrowser.Open(ctx)
}

func validRequest() *models.SearchRequest {
	return &models.SearchRequest{
		Location:   "Springfield",
		Categories: []string{"coffee"},
		MaxResults: 2,
		Mode:       models.ModeFull,
	}
}

func TestStartSearchDisabled(t *testing.T) {
	svc := newTestService(newFakeBrowser(0))
	svc.cfg.Scraper.Enabled = false

	_, err := svc.StartSearch(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, models.ErrCategoryNotEnabled, models.CategoryOf(err))
}

func TestStartSearchInvalidRequest(t *testing.T) {
	svc := newTestService(newFakeBrowser(0))

	_, err := svc.StartSearch(context.Background(), &models.SearchRequest{Location: ""})
	require.Error(t, err)
	assert.Equal(t, models.ErrCategoryInvalidParams, models.CategoryOf(err))
}

func TestControlCommandsUnknownRun(t *testing.T) {
	svc := newTestService(newFakeBrowser(0))

	_, err := svc.Pause("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = svc.Resume("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = svc.Cancel("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = svc.Snapshot("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSingleActiveRun(t *testing.T) {
	browser := newGateBrowser()
	svc := newTestService(browser)

	runID, err := svc.StartSearch(context.Background(), validRequest())
	require.NoError(t, err)

	active, ok := svc.ActiveRun()
	require.True(t, ok)
	assert.Equal(t, runID, active)

	_, err = svc.StartSearch(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, models.ErrCategoryInvalidParams, models.CategoryOf(err))

	snap, err := svc.Cancel(runID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, snap.Status)

	close(browser.release)

	require.Eventually(t, func() bool {
		_, ok := svc.ActiveRun()
		return !ok
	}, 5*time.Second, 10*time.Millisecond, "run must leave the registry once finished")
}

func TestPauseAndResumeReflectInSnapshots(t *testing.T) {
	browser := newGateBrowser()
	svc := newTestService(browser)
	defer close(browser.release)

	runID, err := svc.StartSearch(context.Background(), validRequest())
	require.NoError(t, err)

	snap, err := svc.Pause(runID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, snap.Status)

	snap, err = svc.Snapshot(runID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, snap.Status)

	snap, err = svc.Resume(runID)
	require.NoError(t, err)
	assert.NotEqual(t, models.StatusPaused, snap.Status)

	_, err = svc.Cancel(runID)
	require.NoError(t, err)
}

func TestBrowserLaunchFailurePublishesConnectionError(t *testing.T) {
	browser := newFakeBrowser(0)
	browser.openErr = errors.New("chrome not found")
	svc := newTestService(browser)

	failures := make(chan *models.SearchFailure, 1)
	svc.events.Subscribe(interfaces.EventSearchError, func(_ context.Context, e interfaces.Event) error {
		if failure, ok := e.Payload.(*models.SearchFailure); ok {
			select {
			case failures <- failure:
			default:
			}
		}
		return nil
	})

	runID, err := svc.StartSearch(context.Background(), validRequest())
	require.NoError(t, err)

	select {
	case failure := <-failures:
		assert.Equal(t, runID, failure.RunID)
		assert.Equal(t, models.ErrCategoryConnection, failure.Category)
	case <-time.After(5 * time.Second):
		t.Fatal("no failure event observed")
	}
}

func TestSearchCompletesEndToEnd(t *testing.T) {
	browser := newFakeBrowser(0)
	browser.control.counts = []int{0, 2}
	browser.control.html = resultsHTML([]string{
		"/maps/place/alpha-coffee-roasters/data=!3d41.1!4d-73.9",
		"/maps/place/beta-beans-espresso/data=!3d41.2!4d-73.8",
	})
	browser.control.visibleSelectors = []string{`h1.DUwDvf`}
	browser.control.fields = map[string]string{"DUwDvf": "Alpha Coffee"}

	svc := newTestService(browser)

	results := make(chan *models.SearchResult, 1)
	svc.events.Subscribe(interfaces.EventSearchComplete, func(_ context.Context, e interfaces.Event) error {
		if result, ok := e.Payload.(*models.SearchResult); ok {
			select {
			case results <- result:
			default:
			}
		}
		return nil
	})

	runID, err := svc.StartSearch(context.Background(), validRequest())
	require.NoError(t, err)

	select {
	case result := <-results:
		assert.Equal(t, runID, result.RunID)
		assert.Equal(t, "coffee near Springfield", result.Query)
		require.Len(t, result.Records, 2)
		for _, record := range result.Records {
			assert.Equal(t, "Alpha Coffee", record.Name)
			assert.NotNil(t, record.Location)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("no completion event observed")
	}

	require.Eventually(t, func() bool {
		_, ok := svc.ActiveRun()
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCloseCancelsActiveRun(t *testing.T) {
	browser := newGateBrowser()
	svc := newTestService(browser)

	runID, err := svc.StartSearch(context.Background(), validRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Close())

	snap, err := svc.Snapshot(runID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, snap.Status)

	close(browser.release)

	_, err = svc.StartSearch(context.Background(), validRequest())
	require.Error(t, err, "no new runs after shutdown")
}

func TestHealthyWithoutBrowser(t *testing.T) {
	svc := newTestService(newFakeBrowser(0))
	assert.True(t, svc.Healthy(context.Background()))
}
