package models

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies caller-visible failures
type ErrorCategory string

const (
	ErrCategoryConfig        ErrorCategory = "config_error"
	ErrCategoryInvalidParams ErrorCategory = "invalid_params"
	ErrCategoryNotEnabled    ErrorCategory = "not_enabled"
	ErrCategoryNoResults     ErrorCategory = "no_results"
	ErrCategoryTimeout       ErrorCategory = "timeout"
	ErrCategoryAccessBlocked ErrorCategory = "access_blocked"
	ErrCategoryConnection    ErrorCategory = "connection_error"
	ErrCategoryFailure       ErrorCategory = "failure"
)

// ScrapeError carries an error category and a remediation-oriented message
// to the caller. Wraps the underlying cause when one exists.
type ScrapeError struct {
	Category ErrorCategory
	Message  string
	Err      error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a categorized error
func NewScrapeError(category ErrorCategory, message string, err error) *ScrapeError {
	return &ScrapeError{Category: category, Message: message, Err: err}
}

// CategoryOf extracts the error category from err, defaulting to the
// generic failure category for uncategorized errors
func CategoryOf(err error) ErrorCategory {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Category
	}
	return ErrCategoryFailure
}

// MessageOf extracts the human-readable message from err
func MessageOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
