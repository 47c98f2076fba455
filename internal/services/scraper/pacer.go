package scraper

import (
	"context"
	"math/rand"
	"time"

	"github.com/ternarybob/mapscout/internal/common"
	"golang.org/x/time/rate"
)

// pacer spaces requests out to reduce detection risk. A token bucket
// enforces a floor between navigations on any path; the sequential path
// additionally sleeps a jittered delay that scales mildly with progress.
type pacer struct {
	limiter      *rate.Limiter
	base         time.Duration
	cap          time.Duration
	conservative bool
}

func newPacer(cfg common.ScraperConfig) *pacer {
	base := cfg.ItemDelay
	if base <= 0 {
		base = time.Second
	}
	return &pacer{
		limiter:      rate.NewLimiter(rate.Every(base/2), 1),
		base:         base,
		cap:          cfg.ItemDelayCap,
		conservative: cfg.Conservative,
	}
}

// wait blocks until the rate limit admits the next navigation
func (p *pacer) wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// itemDelay computes the sequential inter-item delay: base, scaled up
// mildly as the run progresses, plus up to 30% jitter. Conservative mode
// clamps the result below the configured cap.
func (p *pacer) itemDelay(processed, total int) time.Duration {
	delay := p.base
	if total > 0 {
		// Up to +50% toward the end of a long run
		scale := 1.0 + 0.5*float64(processed)/float64(total)
		delay = time.Duration(float64(delay) * scale)
	}

	jitter := time.Duration(rand.Int63n(int64(p.base)*3/10 + 1))
	delay += jitter

	if p.conservative && p.cap > 0 && delay > p.cap {
		delay = p.cap
	}
	return delay
}

// sleep waits for d, returning early on context cancellation
func (p *pacer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
