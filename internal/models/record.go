package models

import (
	"time"

	"github.com/paulmach/orb"
)

// BusinessRecord represents one extracted business from the map source.
// Created exactly once per successfully extracted target and immutable
// after creation.
type BusinessRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Address     string     `json:"address,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Website     string     `json:"website,omitempty"`
	Rating      float64    `json:"rating,omitempty"`
	ReviewCount int        `json:"review_count,omitempty"`
	Category    string     `json:"category,omitempty"`
	OpenHours   string     `json:"open_hours,omitempty"`
	Location    *orb.Point `json:"location,omitempty"` // [lng, lat]
	SourceLink  string     `json:"source_link,omitempty"`
	ExtractedAt time.Time  `json:"extracted_at"`
}

// HasLocation reports whether a coordinate pair was recovered for the record
func (r *BusinessRecord) HasLocation() bool {
	return r.Location != nil
}

// SearchResult is the terminal success payload of a run
type SearchResult struct {
	RunID    string            `json:"run_id"`
	Query    string            `json:"query"`
	Records  []*BusinessRecord `json:"records"`
	Warnings []string          `json:"warnings,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// SearchFailure is the terminal failure payload of a run. Partial holds
// any records extracted before the failure.
type SearchFailure struct {
	RunID    string            `json:"run_id"`
	Category ErrorCategory     `json:"category"`
	Message  string            `json:"message"`
	Partial  []*BusinessRecord `json:"partial,omitempty"`
}
