package scraper

// The map source's DOM is unversioned and drifts without notice. Every
// lookup therefore runs through an ordered cascade of candidate selectors,
// accepting the first match that yields plausible content. Order matters:
// most specific first, broadest last.

// scrollRegionSelectors locate the scrollable results panel. When none
// match, discovery falls back to scrolling the document body.
var scrollRegionSelectors = []string{
	`div[role="feed"]`,
	`div[aria-label][tabindex="-1"]`,
	`div.section-scrollbox`,
	`div.m6QErb[aria-label]`,
}

// targetAnchorSelectors count discoverable result entries during the
// scroll loop and feed the harvest strategies afterwards
var targetAnchorSelectors = []string{
	`a[href*="/maps/place/"]`,
	`a[href*="/maps/dir/"]`,
	`div[role="feed"] a[href][aria-label]`,
}

// showMoreSelectors match "show more"-style controls, by attribute first
// and by visible text as a fallback
var showMoreSelectors = []string{
	`button[aria-label*="more" i]`,
	`button[jsaction*="pane.paginationSection"]`,
	`span[aria-label*="More results" i]`,
}

// expandEntrySelectors match collapsed result entries that reveal detail
// links when clicked
var expandEntrySelectors = []string{
	`div[role="article"][aria-expanded="false"]`,
	`button[aria-expanded="false"][aria-label]`,
}

// titleReadySelectors confirm a detail page rendered its heading; absence
// after the content wait is treated as a transient failure
var titleReadySelectors = []string{
	`h1.DUwDvf`,
	`h1[class*="fontHeadline"]`,
	`div[role="main"] h1`,
	`h1`,
}

// fieldStrategy is one candidate locator for one record field
type fieldStrategy struct {
	selector string
	attr     string // empty = text content
}

// Per-field cascades. Missing fields are recorded as absent, never as a
// target failure.
var (
	nameStrategies = []fieldStrategy{
		{selector: `h1.DUwDvf`},
		{selector: `h1[class*="fontHeadline"]`},
		{selector: `div[role="main"] h1`},
	}

	addressStrategies = []fieldStrategy{
		{selector: `button[data-item-id="address"]`, attr: "aria-label"},
		{selector: `button[data-item-id="address"] div.fontBodyMedium`},
		{selector: `div[data-tooltip="Copy address"]`},
	}

	phoneStrategies = []fieldStrategy{
		{selector: `button[data-item-id^="phone:"]`, attr: "aria-label"},
		{selector: `button[data-item-id^="phone:"] div.fontBodyMedium`},
		{selector: `a[href^="tel:"]`, attr: "href"},
	}

	websiteStrategies = []fieldStrategy{
		{selector: `a[data-item-id="authority"]`, attr: "href"},
		{selector: `a[aria-label^="Website" i]`, attr: "href"},
	}

	ratingStrategies = []fieldStrategy{
		{selector: `div.F7nice span[aria-hidden="true"]`},
		{selector: `span.ceNzKf`, attr: "aria-label"},
		{selector: `div[jsaction*="pane.rating"] span[aria-hidden="true"]`},
	}

	reviewCountStrategies = []fieldStrategy{
		{selector: `div.F7nice span[aria-label*="review" i]`, attr: "aria-label"},
		{selector: `button[jsaction*="pane.reviewChart"] span`},
		{selector: `span[aria-label*="review" i]`},
	}

	categoryStrategies = []fieldStrategy{
		{selector: `button[jsaction*="pane.rating.category"]`},
		{selector: `button.DkEaL`},
		{selector: `span.mgr77e button`},
	}

	hoursStrategies = []fieldStrategy{
		{selector: `div[aria-label*="Hours" i]`, attr: "aria-label"},
		{selector: `button[data-item-id="oh"]`, attr: "aria-label"},
		{selector: `div.t39EBf`, attr: "aria-label"},
	}
)

// aria-label prefixes that field text extraction strips, e.g.
// "Address: 1 Main St" -> "1 Main St"
var fieldLabelPrefixes = []string{
	"Address: ",
	"Phone: ",
	"Website: ",
	"Hours: ",
}
