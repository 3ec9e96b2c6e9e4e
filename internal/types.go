// internal/types.go - Common types for internal packages
package internal

import (
	"errors"
	"time"
)

// Anchor selects which point of a tile is used as the query center
type Anchor string

const (
	AnchorCorner   Anchor = "corner"
	AnchorCentroid Anchor = "centroid"
)

// ProcessingStats represents counters for one pipeline run
type ProcessingStats struct {
	TotalTiles     int64
	ProcessedTiles int64
	DegradedTiles  int64
	RoadRetrieved  int64
	BldgRetrieved  int64
	ImagesWritten  int64
	StartTime      time.Time
	EndTime        time.Time
}

// Duration returns the elapsed run time
func (s *ProcessingStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Error represents application-specific errors
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new application error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether any error in err's chain is an *Error with the given code
func IsCode(err error, code string) bool {
	var appErr *Error
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// CodeOf returns the code of the outermost *Error in err's chain, or "" if none
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ErrorCode constants for common error types
const (
	ErrorCodeRetrieval   = "RETRIEVAL_FAILURE"
	ErrorCodeNoData      = "NO_DATA"
	ErrorCodePersistence = "PERSISTENCE_FAILURE"
	ErrorCodeRaster      = "RASTER_FAILURE"
	ErrorCodeValidation  = "VALIDATION_ERROR"
	ErrorCodeConfig      = "CONFIG_ERROR"
	ErrorCodeTimeout     = "TIMEOUT_ERROR"
)
