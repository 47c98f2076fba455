package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/common"
	"github.com/ternarybob/mapscout/internal/models"
)

// Coordinate pairs ride inside the target token itself, independent of
// page content
var (
	coordBangPattern = regexp.MustCompile(`!3d(-?\d+(?:\.\d+)?)!4d(-?\d+(?:\.\d+)?)`)
	coordAtPattern   = regexp.MustCompile(`@(-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)`)
)

// phonePattern is a loose digit-grouping check, not a full validator:
// enough digits in plausible groups to be a dialable number
var phonePattern = regexp.MustCompile(`^\+?[\d\s().-]{7,25}$`)

var reviewDigitsPattern = regexp.MustCompile(`[\d,.]+`)

// blockedURLMarkers identify sorry/blocked interstitials by URL
var blockedURLMarkers = []string{"/sorry/", "consent.", "captcha"}

// Extractor loads one target's detail view and pulls structured fields
// through ordered selector cascades. Field absence degrades the record,
// never the run.
type Extractor struct {
	cfg    common.ScraperConfig
	logger arbor.ILogger
}

// NewExtractor creates a per-target extractor
func NewExtractor(cfg common.ScraperConfig, logger arbor.ILogger) *Extractor {
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract navigates the supplied page to the target and builds a record,
// retrying transient failures within the given policy. Returns nil when
// the retry budget is exhausted; the caller records a skipped target, not
// a fatal error.
func (e *Extractor) Extract(ctx context.Context, page Page, link string, index, total int, policy *RetryPolicy) (*models.BusinessRecord, error) {
	var record *models.BusinessRecord

	err := policy.Execute(ctx, e.logger, func(attempt int) error {
		e.logger.Debug().
			Int("index", index+1).
			Int("total", total).
			Int("attempt", attempt).
			Msg("Extracting target")

		r, err := e.extractOnce(ctx, page, link)
		if err != nil {
			return err
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (e *Extractor) extractOnce(ctx context.Context, page Page, link string) (*models.BusinessRecord, error) {
	if err := page.Navigate(ctx, link); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	if err := e.checkBlocked(ctx, page); err != nil {
		return nil, err
	}

	if !e.waitContentReady(ctx, page) {
		return nil, errContentNotReady
	}

	name := e.extractField(ctx, page, nameStrategies)
	if name == "" {
		// A detail view without a heading is a rendering failure, not a
		// business with no name
		return nil, errContentNotReady
	}

	record := &models.BusinessRecord{
		ID:          common.NewRecordID(),
		Name:        name,
		Address:     e.extractField(ctx, page, addressStrategies),
		Website:     e.extractField(ctx, page, websiteStrategies),
		Category:    e.extractField(ctx, page, categoryStrategies),
		OpenHours:   e.extractField(ctx, page, hoursStrategies),
		SourceLink:  link,
		ExtractedAt: time.Now(),
	}

	if phone := e.extractField(ctx, page, phoneStrategies); phone != "" {
		record.Phone = normalizePhone(phone)
	}
	if raw := e.extractField(ctx, page, ratingStrategies); raw != "" {
		if rating, ok := parseRating(raw); ok {
			record.Rating = rating
		}
	}
	if raw := e.extractField(ctx, page, reviewCountStrategies); raw != "" {
		if count, ok := parseReviewCount(raw); ok {
			record.ReviewCount = count
		}
	}
	if point, ok := ParseCoordinates(link); ok {
		record.Location = &point
	}

	return record, nil
}

// checkBlocked treats a sorry/blocked URL or a missing page title as a
// blocking signal so the retry policy backs off before the next attempt
func (e *Extractor) checkBlocked(ctx context.Context, page Page) error {
	location, err := page.Location(ctx)
	if err == nil {
		lower := strings.ToLower(location)
		for _, marker := range blockedURLMarkers {
			if strings.Contains(lower, marker) {
				return fmt.Errorf("%w: url %s", errBlocked, location)
			}
		}
	}

	title, err := page.Title(ctx)
	if err != nil {
		return fmt.Errorf("title probe failed: %w", err)
	}
	if strings.TrimSpace(title) == "" || strings.Contains(strings.ToLower(title), "sorry") {
		return fmt.Errorf("%w: title %q", errBlocked, title)
	}

	return nil
}

// waitContentReady waits for at least one title-like element to render
func (e *Extractor) waitContentReady(ctx context.Context, page Page) bool {
	deadline := time.Now().Add(e.cfg.ContentWaitTimeout)
	perSelector := e.cfg.ContentWaitTimeout / time.Duration(len(titleReadySelectors))
	if perSelector < time.Second {
		perSelector = time.Second
	}

	for _, sel := range titleReadySelectors {
		if time.Now().After(deadline) {
			return false
		}
		if page.WaitVisible(ctx, sel, perSelector) {
			return true
		}
	}
	return false
}

// extractField walks the cascade and accepts the first candidate yielding
// non-empty content
func (e *Extractor) extractField(ctx context.Context, page Page, cascade []fieldStrategy) string {
	for _, strategy := range cascade {
		value := e.tryStrategy(ctx, page, strategy)
		if value != "" {
			return value
		}
	}
	return ""
}

func (e *Extractor) tryStrategy(ctx context.Context, page Page, strategy fieldStrategy) string {
	var expr string
	if strategy.attr == "" {
		expr = `(() => {
			const el = document.querySelector(` + strconv.Quote(strategy.selector) + `);
			return el ? el.textContent.trim() : "";
		})()`
	} else {
		expr = `(() => {
			const el = document.querySelector(` + strconv.Quote(strategy.selector) + `);
			return el ? (el.getAttribute(` + strconv.Quote(strategy.attr) + `) || "").trim() : "";
		})()`
	}

	var value string
	if err := page.Evaluate(ctx, expr, &value); err != nil {
		return ""
	}

	return cleanFieldValue(value)
}

// cleanFieldValue strips label prefixes and phone/tel schemes that ride
// along in aria-labels and hrefs
func cleanFieldValue(value string) string {
	value = strings.TrimSpace(value)
	for _, prefix := range fieldLabelPrefixes {
		value = strings.TrimPrefix(value, prefix)
	}
	value = strings.TrimPrefix(value, "tel:")
	return strings.TrimSpace(value)
}

// ParseCoordinates extracts an embedded latitude/longitude pair from a
// target token. The !3d/!4d form marks the place itself and wins over the
// @lat,lng viewport form.
func ParseCoordinates(token string) (orb.Point, bool) {
	if m := coordBangPattern.FindStringSubmatch(token); m != nil {
		return parsePoint(m[1], m[2])
	}
	if m := coordAtPattern.FindStringSubmatch(token); m != nil {
		return parsePoint(m[1], m[2])
	}
	return orb.Point{}, false
}

func parsePoint(latStr, lngStr string) (orb.Point, bool) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return orb.Point{}, false
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return orb.Point{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return orb.Point{}, false
	}
	return orb.Point{lng, lat}, true
}

// parseRating accepts values that parse as a number in [0,5]
func parseRating(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	// aria-label form: "4.5 stars"
	if idx := strings.IndexByte(raw, ' '); idx > 0 {
		raw = raw[:idx]
	}
	raw = strings.ReplaceAll(raw, ",", ".")

	rating, err := strconv.ParseFloat(raw, 64)
	if err != nil || rating < 0 || rating > 5 {
		return 0, false
	}
	return rating, true
}

// parseReviewCount pulls a non-negative integer out of forms like
// "(1,234)" or "1,234 reviews"
func parseReviewCount(raw string) (int, bool) {
	digits := reviewDigitsPattern.FindString(raw)
	if digits == "" {
		return 0, false
	}
	digits = strings.ReplaceAll(digits, ",", "")
	digits = strings.ReplaceAll(digits, ".", "")

	count, err := strconv.Atoi(digits)
	if err != nil || count < 0 {
		return 0, false
	}
	return count, true
}

// normalizePhone keeps values matching a loose digit-grouping pattern
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if !phonePattern.MatchString(raw) {
		return ""
	}
	return raw
}
