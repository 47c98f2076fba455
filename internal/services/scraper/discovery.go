package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/common"
)

// minTargetTokenLen filters out junk anchors; a real detail link is never
// this short
const minTargetTokenLen = 12

// showMoreProbeCap bounds how many controls are probed per iteration for
// speed
const showMoreProbeCap = 3
const expandProbeCap = 5

// settleDelay lets lazily loaded entries render between scroll and recount
const settleDelay = 800 * time.Millisecond

// discoveryEngine converts a just-navigated results page into a
// deduplicated ordered list of target links by repeatedly triggering
// content growth until it stalls
type discoveryEngine struct {
	cfg     common.ScraperConfig
	logger  arbor.ILogger
	control *Control
	emit    func(discovered int)
}

func newDiscoveryEngine(cfg common.ScraperConfig, logger arbor.ILogger, control *Control, emit func(int)) *discoveryEngine {
	if emit == nil {
		emit = func(int) {}
	}
	return &discoveryEngine{
		cfg:     cfg,
		logger:  logger,
		control: control,
		emit:    emit,
	}
}

// Discover runs the scroll loop and harvests target links. maxTargets > 0
// stops the loop early once enough targets are visible; the scheduler caps
// the processed slice regardless. The loop favors stopping slightly early
// over unbounded scrolling, with a wall-clock guard against pathological
// pages.
func (d *discoveryEngine) Discover(ctx context.Context, page Page, maxTargets int) ([]string, error) {
	maxScrolls := d.cfg.MaxScrollAttempts
	maxStall := d.cfg.MaxConsecutiveStall
	if d.cfg.Conservative {
		maxScrolls = d.cfg.ConservativeScrolls
		maxStall = d.cfg.ConservativeStall
	}

	region := d.locateScrollRegion(ctx, page)
	start := time.Now()
	stall := 0
	total := 0

	d.logger.Debug().
		Str("scroll_region", region).
		Int("max_scrolls", maxScrolls).
		Int("max_stall", maxStall).
		Bool("conservative", d.cfg.Conservative).
		Msg("Starting discovery scroll loop")

	for attempt := 0; attempt < maxScrolls; attempt++ {
		if err := d.control.Gate(ctx); err != nil {
			return nil, err
		}

		if time.Since(start) > d.cfg.DiscoveryTimeout {
			d.logger.Warn().
				Dur("elapsed", time.Since(start)).
				Int("discovered", total).
				Msg("Discovery wall-clock timeout reached")
			break
		}

		before := d.countTargets(ctx, page)

		d.scrollToEnds(ctx, page, region)
		d.triggerMoreContent(ctx, page)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(settleDelay):
		}

		after := d.countTargets(ctx, page)
		total = after

		if after > before {
			stall = 0
		} else {
			stall++
		}

		d.emit(after)

		d.logger.Debug().
			Int("attempt", attempt+1).
			Int("before", before).
			Int("after", after).
			Int("stall", stall).
			Msg("Discovery iteration")

		if maxTargets > 0 && after >= maxTargets {
			break
		}
		if stall >= maxStall && total > 0 {
			break
		}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture results page: %w", err)
	}

	links := harvestTargets(html, d.cfg.BaseURL)

	d.logger.Info().
		Int("visible_targets", total).
		Int("harvested", len(links)).
		Dur("duration", time.Since(start)).
		Msg("Discovery finished")

	return links, nil
}

// locateScrollRegion finds the scrollable results panel, falling back to
// the document body when no candidate matches
func (d *discoveryEngine) locateScrollRegion(ctx context.Context, page Page) string {
	for _, sel := range scrollRegionSelectors {
		var found bool
		expr := "!!document.querySelector(" + strconv.Quote(sel) + ")"
		if err := page.Evaluate(ctx, expr, &found); err == nil && found {
			return sel
		}
	}
	return "body"
}

// countTargets counts currently discoverable target anchors, deduplicated
// by href so overlapping selectors don't inflate the count
func (d *discoveryEngine) countTargets(ctx context.Context, page Page) int {
	quoted := make([]string, len(targetAnchorSelectors))
	for i, sel := range targetAnchorSelectors {
		quoted[i] = strconv.Quote(sel)
	}

	expr := `(() => {
		const seen = new Set();
		for (const sel of [` + strings.Join(quoted, ",") + `]) {
			for (const el of document.querySelectorAll(sel)) {
				const href = el.getAttribute('href');
				if (href) seen.add(href);
			}
		}
		return seen.size;
	})()`

	var count int
	if err := page.Evaluate(ctx, expr, &count); err != nil {
		d.logger.Debug().Err(err).Msg("Target count evaluation failed")
		return 0
	}
	return count
}

// scrollToEnds issues the scroll region, the whole document and any nested
// scrollable descendants to their ends. Best effort; failures are logged
// and the loop continues.
func (d *discoveryEngine) scrollToEnds(ctx context.Context, page Page, region string) {
	expr := `(() => {
		const region = document.querySelector(` + strconv.Quote(region) + `);
		if (region) region.scrollTop = region.scrollHeight;
		window.scrollTo(0, document.body.scrollHeight);
		for (const el of document.querySelectorAll('div, ul')) {
			if (el.scrollHeight > el.clientHeight + 50) {
				el.scrollTop = el.scrollHeight;
			}
		}
		return true;
	})()`

	if err := page.Evaluate(ctx, expr, nil); err != nil {
		d.logger.Debug().Err(err).Msg("Scroll evaluation failed")
	}
}

// triggerMoreContent clicks visible "show more"-like controls and expands
// collapsed entries, capped per iteration for speed
func (d *discoveryEngine) triggerMoreContent(ctx context.Context, page Page) {
	for _, sel := range showMoreSelectors {
		if _, err := page.ClickNodes(ctx, sel, showMoreProbeCap); err != nil {
			d.logger.Debug().Err(err).Str("selector", sel).Msg("Show-more probe failed")
		}
	}
	for _, sel := range expandEntrySelectors {
		if _, err := page.ClickNodes(ctx, sel, expandProbeCap); err != nil {
			d.logger.Debug().Err(err).Str("selector", sel).Msg("Expand probe failed")
		}
	}
}

// harvestTargets extracts target links from the captured results page via
// three complementary strategies, unions them and deduplicates by
// absolutized link, preserving discovery order
func harvestTargets(html, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	origin := originOf(baseURL)
	seen := make(map[string]struct{})
	var links []string

	harvest := func(selector string) {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			href = strings.TrimSpace(href)
			if len(href) < minTargetTokenLen {
				return
			}
			link := absoluteLink(href, origin)
			if _, dup := seen[link]; dup {
				return
			}
			seen[link] = struct{}{}
			links = append(links, link)
		})
	}

	// Direction-link anchors, place-detail anchors, clickable entries
	harvest(`a[href*="/maps/dir/"]`)
	harvest(`a[href*="/maps/place/"]`)
	harvest(`div[role="feed"] a[href][aria-label]`)

	return links
}

// originOf reduces a URL to its scheme://host prefix
func originOf(rawURL string) string {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return ""
	}
	rest := rawURL[idx+3:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		return rawURL[:idx+3+slash]
	}
	return rawURL
}

func absoluteLink(href, origin string) string {
	if strings.HasPrefix(href, "/") && origin != "" {
		return origin + href
	}
	return href
}
