package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverStopsOnStall(t *testing.T) {
	cfg := testScraperConfig()
	cfg.MaxScrollAttempts = 30
	cfg.MaxConsecutiveStall = 3

	page := newFakePage()
	// Each iteration consumes a before/after pair: growth twice, then flat
	page.counts = []int{0, 5, 5, 9, 9, 9}
	page.html = resultsHTML([]string{
		"/maps/place/alpha-coffee-roasters/data=!3d41.1!4d-73.9",
		"/maps/place/beta-books-and-more/data=!3d41.2!4d-73.8",
	})

	var emitted []int
	engine := newDiscoveryEngine(cfg, testLogger(), NewControl(time.Millisecond), func(n int) {
		emitted = append(emitted, n)
	})

	links, err := engine.Discover(context.Background(), page, 0)
	require.NoError(t, err)

	assert.Len(t, links, 2)
	// 2 growth iterations + 3 stalled ones, never the full 30
	assert.Len(t, emitted, 5)
	assert.Equal(t, 9, emitted[len(emitted)-1])
}

func TestDiscoverNeverExceedsScrollCeiling(t *testing.T) {
	cfg := testScraperConfig()
	cfg.MaxScrollAttempts = 4
	cfg.MaxConsecutiveStall = 100

	page := newFakePage()
	page.counts = []int{0} // flat at zero so the stall break never fires
	page.html = "<html><body></body></html>"

	iterations := 0
	engine := newDiscoveryEngine(cfg, testLogger(), NewControl(time.Millisecond), func(int) {
		iterations++
	})

	links, err := engine.Discover(context.Background(), page, 0)
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Equal(t, 4, iterations)
}

func TestDiscoverConservativeUsesShorterLoop(t *testing.T) {
	cfg := testScraperConfig()
	cfg.Conservative = true
	cfg.ConservativeScrolls = 2
	cfg.ConservativeStall = 100

	page := newFakePage()
	page.counts = []int{0}
	page.html = "<html><body></body></html>"

	iterations := 0
	engine := newDiscoveryEngine(cfg, testLogger(), NewControl(time.Millisecond), func(int) {
		iterations++
	})

	_, err := engine.Discover(context.Background(), page, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, iterations)
}

func TestDiscoverStopsEarlyAtMaxTargets(t *testing.T) {
	cfg := testScraperConfig()

	page := newFakePage()
	page.counts = []int{10, 20, 30, 40}
	page.html = resultsHTML([]string{"/maps/place/gamma-grill-house/x"})

	iterations := 0
	engine := newDiscoveryEngine(cfg, testLogger(), NewControl(time.Millisecond), func(int) {
		iterations++
	})

	_, err := engine.Discover(context.Background(), page, 15)
	require.NoError(t, err)
	assert.Equal(t, 1, iterations, "the loop stops once enough targets are visible")
}

func TestDiscoverHonorsCancel(t *testing.T) {
	cfg := testScraperConfig()

	control := NewControl(time.Millisecond)
	control.Cancel()

	engine := newDiscoveryEngine(cfg, testLogger(), control, nil)
	_, err := engine.Discover(context.Background(), newFakePage(), 0)
	assert.ErrorIs(t, err, ErrRunCancelled)
}

func TestDiscoverWallClockGuard(t *testing.T) {
	cfg := testScraperConfig()
	cfg.DiscoveryTimeout = 1 // effectively elapsed immediately
	cfg.MaxScrollAttempts = 30

	page := newFakePage()
	page.html = resultsHTML([]string{"/maps/place/delta-diner-downtown/x"})

	iterations := 0
	engine := newDiscoveryEngine(cfg, testLogger(), NewControl(time.Millisecond), func(int) {
		iterations++
	})

	links, err := engine.Discover(context.Background(), page, 0)
	require.NoError(t, err)
	assert.Zero(t, iterations, "no iteration runs past the wall clock")
	assert.Len(t, links, 1, "links visible at timeout are still harvested")
}

func TestHarvestTargetsDeduplicatesAcrossStrategies(t *testing.T) {
	html := `<html><body>
		<a href="/maps/place/alpha-coffee-roasters/data=!3d41.1!4d-73.9">Alpha</a>
		<a href="/maps/place/alpha-coffee-roasters/data=!3d41.1!4d-73.9">Alpha again</a>
		<a href="/maps/dir//alpha-coffee-roasters/data=x">Directions</a>
		<div role="feed">
			<a href="/maps/place/beta-books-and-more/data=z" aria-label="Beta Books">Beta</a>
		</div>
	</body></html>`

	links := harvestTargets(html, "https://maps.example.com/search/")

	require.Len(t, links, 3)
	assert.Equal(t, "https://maps.example.com/maps/dir//alpha-coffee-roasters/data=x", links[0])
	assert.Equal(t, "https://maps.example.com/maps/place/alpha-coffee-roasters/data=!3d41.1!4d-73.9", links[1])
	assert.Equal(t, "https://maps.example.com/maps/place/beta-books-and-more/data=z", links[2])
}

func TestHarvestTargetsDeduplicatesRelativeAndAbsoluteForms(t *testing.T) {
	// The same place can surface once with a relative href and once fully
	// qualified; both resolve to one target
	html := `<html><body>
		<a href="/maps/place/gamma-garden-supply/data=q">relative</a>
		<div role="feed">
			<a href="https://maps.example.com/maps/place/gamma-garden-supply/data=q" aria-label="Gamma Garden">absolute</a>
		</div>
	</body></html>`

	links := harvestTargets(html, "https://maps.example.com/search/")

	require.Len(t, links, 1)
	assert.Equal(t, "https://maps.example.com/maps/place/gamma-garden-supply/data=q", links[0])
}

func TestHarvestTargetsFiltersShortTokens(t *testing.T) {
	html := `<html><body>
		<a href="/maps/dir/">too short</a>
		<a href="/maps/place/full-length-token-here">kept</a>
	</body></html>`

	links := harvestTargets(html, "https://maps.example.com/search/")
	require.Len(t, links, 1)
	assert.Contains(t, links[0], "full-length-token-here")
}

func TestHarvestTargetsKeepsAbsoluteLinks(t *testing.T) {
	html := `<html><body>
		<a href="https://other.example.net/maps/place/epsilon-eats">kept as is</a>
	</body></html>`

	links := harvestTargets(html, "https://maps.example.com/search/")
	require.Len(t, links, 1)
	assert.Equal(t, "https://other.example.net/maps/place/epsilon-eats", links[0])
}

func resultsHTML(hrefs []string) string {
	html := "<html><body>"
	for _, href := range hrefs {
		html += `<a href="` + href + `">entry</a>`
	}
	return html + "</body></html>"
}
