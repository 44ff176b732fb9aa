// Package errors defines the error taxonomy shared by the preview pipeline.
//
// Every stage reports failures as *Error values carrying a Kind. Callers decide
// how to degrade from the Kind alone: recoverable kinds fall back to the default
// placement suggestion, and only ImageDecodeFailed is shown to the shopper.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents a category of pipeline failure
type Kind string

const (
	// KindDetectionUnavailable means the feature-detection library failed to load.
	KindDetectionUnavailable Kind = "detection_unavailable"
	// KindAnalysisFailed means a detection or clustering step failed on a loaded raster.
	KindAnalysisFailed Kind = "analysis_failed"
	// KindImageDecodeFailed means the chosen image could not be rasterized.
	KindImageDecodeFailed Kind = "image_decode_failed"
	// KindConversionFailed means format normalization failed.
	KindConversionFailed Kind = "conversion_failed"
	// KindInvalidInput means a caller supplied unusable arguments.
	KindInvalidInput Kind = "invalid_input"
	// KindNotFound means a referenced session or resource does not exist.
	KindNotFound Kind = "not_found"
)

// Error is a categorized pipeline error
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Recoverable reports whether the failure degrades to the default suggestion
// instead of being surfaced to the shopper.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindDetectionUnavailable, KindAnalysisFailed, KindConversionFailed:
		return true
	}
	return false
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// DetectionUnavailable creates a detection_unavailable error
func DetectionUnavailable(message string, cause error) *Error {
	return newError(KindDetectionUnavailable, message, cause)
}

// AnalysisFailed creates an analysis_failed error
func AnalysisFailed(message string, cause error) *Error {
	return newError(KindAnalysisFailed, message, cause)
}

// ImageDecodeFailed creates an image_decode_failed error
func ImageDecodeFailed(message string, cause error) *Error {
	return newError(KindImageDecodeFailed, message, cause)
}

// ConversionFailed creates a conversion_failed error
func ConversionFailed(message string, cause error) *Error {
	return newError(KindConversionFailed, message, cause)
}

// InvalidInput creates an invalid_input error
func InvalidInput(message string, cause error) *Error {
	return newError(KindInvalidInput, message, cause)
}

// NotFound creates a not_found error
func NotFound(message string, cause error) *Error {
	return newError(KindNotFound, message, cause)
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRecoverable reports whether err degrades to the default suggestion.
// Errors outside the taxonomy are not recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Recoverable()
	}
	return false
}
