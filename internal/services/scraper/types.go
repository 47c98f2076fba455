package scraper

import (
	"context"
	"errors"
	"time"
)

// Page abstracts one browser tab. Discovery and extraction logic depend on
// this interface only, so they can be exercised against fakes in tests.
type Page interface {
	// Navigate loads the given URL and waits for the load event
	Navigate(ctx context.Context, url string) error

	// Title returns the current document title
	Title(ctx context.Context) (string, error)

	// Location returns the current document URL
	Location(ctx context.Context) (string, error)

	// HTML returns the serialized document
	HTML(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression; result may be nil when the
	// value is not needed
	Evaluate(ctx context.Context, expression string, result interface{}) error

	// WaitVisible blocks until the selector matches a visible element or
	// the timeout elapses. Returns false on timeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool

	// ClickNodes clicks up to max elements matching the selector and
	// returns how many were clicked
	ClickNodes(ctx context.Context, selector string, max int) (int, error)

	// Close releases the tab. Idempotent.
	Close() error
}

// Browser abstracts the session lifecycle for the scheduler and service
type Browser interface {
	// Open launches the browser process and creates the control page
	Open(ctx context.Context) error

	// ControlPage returns the shared control page. Only valid after Open.
	ControlPage() Page

	// NewPage creates an auxiliary tab for parallel extraction
	NewPage(ctx context.Context) (Page, error)

	// HealthCheck probes liveness, no-oping inside the minimum interval.
	// Never returns an error; false means the browser is unresponsive.
	HealthCheck(ctx context.Context) bool

	// EnsureHealthy runs a health check and reinitializes the browser
	// once on failure
	EnsureHealthy(ctx context.Context) error

	// Close releases all pages and the browser process. Idempotent.
	Close() error
}

var (
	// ErrSessionInit indicates the browser process could not be started
	ErrSessionInit = errors.New("browser session failed to initialize")

	// ErrPageCreation indicates an auxiliary page could not be created
	ErrPageCreation = errors.New("auxiliary page creation failed")

	// ErrRunCancelled is returned from loop heads when a cancel command
	// interrupted the run
	ErrRunCancelled = errors.New("run cancelled")

	// ErrRunNotFound is returned by control commands addressing an unknown
	// or already finished run
	ErrRunNotFound = errors.New("run not found")

	// errBlocked marks a blocked/sorry interstitial; target-transient
	errBlocked = errors.New("blocked page detected")

	// errContentNotReady marks a detail page whose content never appeared
	errContentNotReady = errors.New("target content not ready")
)
