package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique scrape-run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewRecordID generates a unique extracted-record ID with the "rec_" prefix
func NewRecordID() string {
	return "rec_" + uuid.New().String()
}
