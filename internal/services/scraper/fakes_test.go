package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/common"
	"github.com/ternarybob/mapscout/internal/models"
)

func testScraperConfig() common.ScraperConfig {
	return common.ScraperConfig{
		Enabled:               true,
		BaseURL:               "https://maps.example.com/search/",
		MaxConcurrentScrapers: 3,
		MaxResults:            200,
		NavigationTimeout:     time.Second,
		ContentWaitTimeout:    time.Second,
		DiscoveryTimeout:      5 * time.Second,
		MaxScrollAttempts:     30,
		MaxConsecutiveStall:   6,
		ConservativeScrolls:   15,
		ConservativeStall:     3,
		RetryAttempts:         3,
		ParallelRetryAttempts: 2,
		RetryDelay:            time.Millisecond,
		BlockedBackoff:        2 * time.Millisecond,
		ItemDelay:             time.Millisecond,
		ItemDelayCap:          2 * time.Millisecond,
		BatchDelay:            time.Millisecond,
		PauseCheckInterval:    5 * time.Millisecond,
	}
}

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// fakePage is a scripted Page. Evaluate dispatches on the result type:
// *int answers target counts, *bool answers the scroll-region probe,
// *string answers field strategies, nil acknowledges scroll scripts.
type fakePage struct {
	mu sync.Mutex

	navigated   []string
	navigateErr error

	title    string
	titleErr error

	location string

	html string

	// counts is consumed one value per count evaluation; the last value
	// repeats once the script is exhausted
	counts   []int
	countIdx int

	// fields maps a selector substring to the value its strategy returns
	fields map[string]string

	visibleSelectors []string

	clicked  map[string]int
	closed   bool
	closeErr error
}

func newFakePage() *fakePage {
	return &fakePage{
		title:    "Acme Anvils",
		location: "https://maps.example.com/maps/place/acme",
		clicked:  make(map[string]int),
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navigateErr != nil {
		return p.navigateErr
	}
	p.navigated = append(p.navigated, url)
	p.location = url
	return nil
}

func (p *fakePage) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, p.titleErr
}

func (p *fakePage) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *fakePage) Evaluate(_ context.Context, expr string, result interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch out := result.(type) {
	case *int:
		if len(p.counts) == 0 {
			*out = 0
			return nil
		}
		*out = p.counts[p.countIdx]
		if p.countIdx < len(p.counts)-1 {
			p.countIdx++
		}
	case *bool:
		*out = false
	case *string:
		for needle, value := range p.fields {
			if strings.Contains(expr, needle) {
				*out = value
				return nil
			}
		}
		*out = ""
	}
	return nil
}

func (p *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sel := range p.visibleSelectors {
		if sel == selector {
			return true
		}
	}
	return false
}

func (p *fakePage) ClickNodes(_ context.Context, selector string, max int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked[selector] += max
	return 0, nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeErr
}

// fakeBrowser hands out fake pages; auxPages <= 1 forces the sequential
// extraction path
type fakeBrowser struct {
	mu sync.Mutex

	control  *fakePage
	auxPages int
	opened   []*fakePage

	openErr    error
	healthy    bool
	ensureErr  error
	closeCount int
}

func newFakeBrowser(auxPages int) *fakeBrowser {
	return &fakeBrowser{
		control:  newFakePage(),
		auxPages: auxPages,
		healthy:  true,
	}
}

func (b *fakeBrowser) Open(context.Context) error {
	return b.openErr
}

func (b *fakeBrowser) ControlPage() Page {
	return b.control
}

func (b *fakeBrowser) NewPage(context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.opened) >= b.auxPages {
		return nil, ErrPageCreation
	}
	page := newFakePage()
	b.opened = append(b.opened, page)
	return page, nil
}

func (b *fakeBrowser) HealthCheck(context.Context) bool {
	return b.healthy
}

func (b *fakeBrowser) EnsureHealthy(context.Context) error {
	return b.ensureErr
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCount++
	return nil
}

// fakeExtractor returns canned outcomes per link; unknown links succeed.
// onExtract, when set, runs before each extraction so tests can inject
// control transitions mid-run.
type fakeExtractor struct {
	mu        sync.Mutex
	calls     []string
	failing   map[string]error
	onExtract func(link string)
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{failing: make(map[string]error)}
}

func (f *fakeExtractor) Extract(_ context.Context, _ Page, link string, _, _ int, _ *RetryPolicy) (*models.BusinessRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, link)
	hook := f.onExtract
	err := f.failing[link]
	f.mu.Unlock()

	if hook != nil {
		hook(link)
	}
	if err != nil {
		return nil, err
	}

	return &models.BusinessRecord{
		ID:          common.NewRecordID(),
		Name:        fmt.Sprintf("business for %s", link),
		SourceLink:  link,
		ExtractedAt: time.Now(),
	}, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
