package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/common"
)

// Session owns one Chrome process and its control page. It is the sole
// owner of the open/close lifecycle; reinitialization is serialized behind
// the session mutex so no two reinitializations can overlap.
type Session struct {
	cfg    common.ScraperConfig
	logger arbor.ILogger

	mu              sync.Mutex
	allocCancel     context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	control         *chromedpPage
	lastHealthCheck time.Time
	opened          bool
}

// NewSession creates an unopened browser session
func NewSession(cfg common.ScraperConfig, logger arbor.ILogger) *Session {
	return &Session{
		cfg:    cfg,
		logger: logger,
	}
}

// Open launches the browser process and creates the control page with a
// realistic viewport and user agent. Fails with ErrSessionInit when the
// process cannot start; callers must not proceed after a failure.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(ctx)
}

func (s *Session) openLocked(ctx context.Context) error {
	if s.opened {
		return fmt.Errorf("%w: session already open", ErrSessionInit)
	}

	startTime := time.Now()

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("no-sandbox", s.cfg.NoSandbox),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(s.cfg.UserAgent),
		chromedp.WindowSize(s.cfg.ViewportWidth, s.cfg.ViewportHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Startup probe; a browser that cannot reach about:blank is dead
	testCtx, testCancel := context.WithTimeout(browserCtx, s.cfg.NavigationTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx,
		chromedp.EmulateViewport(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight)),
		chromedp.Navigate("about:blank"),
	); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("%w: %v", ErrSessionInit, err)
	}

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.control = &chromedpPage{
		ctx:               browserCtx,
		navigationTimeout: s.cfg.NavigationTimeout,
		logger:            s.logger,
	}
	s.lastHealthCheck = time.Now()
	s.opened = true

	s.logger.Info().
		Bool("headless", s.cfg.Headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session opened")

	return nil
}

// ControlPage returns the shared control page
func (s *Session) ControlPage() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.control
}

// NewPage creates an auxiliary tab with the control page's configuration,
// for parallel extraction. Fails with ErrPageCreation when the browser is
// not connected.
func (s *Session) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened || s.browserCtx == nil {
		return nil, fmt.Errorf("%w: browser not connected", ErrPageCreation)
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)

	probeCtx, probeCancel := context.WithTimeout(tabCtx, s.cfg.NavigationTimeout)
	defer probeCancel()

	if err := chromedp.Run(probeCtx,
		chromedp.EmulateViewport(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight)),
		chromedp.Navigate("about:blank"),
	); err != nil {
		tabCancel()
		return nil, fmt.Errorf("%w: %v", ErrPageCreation, err)
	}

	return &chromedpPage{
		ctx:               tabCtx,
		cancel:            tabCancel,
		navigationTimeout: s.cfg.NavigationTimeout,
		logger:            s.logger,
	}, nil
}

// HealthCheck confirms the process is connected and the control page still
// responds to a trivial evaluation. No-ops inside the minimum interval.
// Never returns an error.
func (s *Session) HealthCheck(ctx context.Context) bool {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return false
	}
	if time.Since(s.lastHealthCheck) < s.cfg.HealthCheckInterval {
		s.mu.Unlock()
		return true
	}
	control := s.control
	s.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var result int
	if err := control.Evaluate(probeCtx, "1+1", &result); err != nil || result != 2 {
		s.logger.Warn().Err(err).Msg("Browser health check failed")
		return false
	}

	s.mu.Lock()
	s.lastHealthCheck = time.Now()
	s.mu.Unlock()
	return true
}

// EnsureHealthy runs a health check and, on failure, closes and reopens
// the browser once. A failure here is fatal for the current batch.
func (s *Session) EnsureHealthy(ctx context.Context) error {
	if s.HealthCheck(ctx) {
		return nil
	}

	s.logger.Warn().Msg("Browser unresponsive - reinitializing session")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	if err := s.openLocked(ctx); err != nil {
		return fmt.Errorf("browser reinitialization failed: %w", err)
	}
	return nil
}

// Close releases the control page and the browser process. Idempotent;
// secondary teardown errors are logged, not raised.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Session) closeLocked() {
	if !s.opened {
		return
	}

	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}

	s.browserCtx = nil
	s.control = nil
	s.opened = false

	s.logger.Info().Msg("Browser session closed")
}

// chromedpPage adapts a chromedp tab context to the Page interface
type chromedpPage struct {
	ctx               context.Context
	cancel            context.CancelFunc
	navigationTimeout time.Duration
	logger            arbor.ILogger
	closeOnce         sync.Once
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := p.bound(ctx, p.navigationTimeout)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Navigate(url))
}

func (p *chromedpPage) Title(ctx context.Context) (string, error) {
	runCtx, cancel := p.bound(ctx, 10*time.Second)
	defer cancel()

	var title string
	err := chromedp.Run(runCtx, chromedp.Title(&title))
	return title, err
}

func (p *chromedpPage) Location(ctx context.Context) (string, error) {
	runCtx, cancel := p.bound(ctx, 10*time.Second)
	defer cancel()

	var location string
	err := chromedp.Run(runCtx, chromedp.Location(&location))
	return location, err
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := p.bound(ctx, 30*time.Second)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromedpPage) Evaluate(ctx context.Context, expression string, result interface{}) error {
	runCtx, cancel := p.bound(ctx, 20*time.Second)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(expression, result))
}

func (p *chromedpPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	runCtx, cancel := p.bound(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return false
	}
	return true
}

func (p *chromedpPage) ClickNodes(ctx context.Context, selector string, max int) (int, error) {
	runCtx, cancel := p.bound(ctx, 15*time.Second)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(runCtx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	); err != nil {
		return 0, err
	}

	clicked := 0
	for _, node := range nodes {
		if clicked >= max {
			break
		}
		if err := chromedp.Run(runCtx, chromedp.MouseClickNode(node)); err != nil {
			// Best effort: stale or obscured nodes are skipped
			continue
		}
		clicked++
	}

	return clicked, nil
}

func (p *chromedpPage) Close() error {
	p.closeOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	return nil
}

// bound derives a run context that honors both the caller's deadline and
// the page's own timeout, while executing against the tab context
func (p *chromedpPage) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			cancel()
			runCtx, cancel = context.WithTimeout(p.ctx, remaining)
		}
	}

	// Propagate caller cancellation into the tab-scoped context
	stop := context.AfterFunc(ctx, cancel)
	wrapped := func() {
		stop()
		cancel()
	}
	return runCtx, wrapped
}
