package models

import (
	"net/url"
	"strings"
)

// QualityMode controls how many results a search is allowed to chase
type QualityMode string

const (
	ModePreview   QualityMode = "preview"   // Quick look, small result cap
	ModeFull      QualityMode = "full"      // Honor the requested maximum
	ModeUnlimited QualityMode = "unlimited" // Cap only by the configured global ceiling
)

// SearchRequest describes one map extraction run. Immutable once submitted.
type SearchRequest struct {
	Location   string      `json:"location" validate:"required,min=2,max=200"`
	Categories []string    `json:"categories,omitempty" validate:"max=10,dive,min=1,max=100"`
	RadiusKM   float64     `json:"radius_km,omitempty" validate:"gte=0,lte=100"`
	MaxResults int         `json:"max_results,omitempty" validate:"gte=0,lte=1000"`
	Mode       QualityMode `json:"mode,omitempty" validate:"omitempty,oneof=preview full unlimited"`
}

// previewCap bounds preview-mode runs regardless of the requested maximum
const previewCap = 10

// Query renders the search text the results page is navigated to,
// e.g. "coffee shops near Springfield"
func (r *SearchRequest) Query() string {
	location := strings.TrimSpace(r.Location)
	if len(r.Categories) == 0 {
		return location
	}

	categories := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	if len(categories) == 0 {
		return location
	}

	return strings.Join(categories, " ") + " near " + location
}

// SearchURL builds the results-page URL for the given base and language
func (r *SearchRequest) SearchURL(baseURL, language string) string {
	u := baseURL + url.PathEscape(r.Query())
	if language != "" {
		u += "?hl=" + url.QueryEscape(language)
	}
	return u
}

// EffectiveMax resolves the number of records the run may return, clamping
// the caller's request against the mode and the configured global ceiling
func (r *SearchRequest) EffectiveMax(globalCeiling int) int {
	max := r.MaxResults
	if max <= 0 || r.Mode == ModeUnlimited {
		max = globalCeiling
	}
	if r.Mode == ModePreview && max > previewCap {
		max = previewCap
	}
	if max > globalCeiling {
		max = globalCeiling
	}
	return max
}
