// Package errors provides domain-specific error types for geoip-rsc.
//
// Every failure the refresh pipeline and the script engine report carries an
// ErrorCode, so callers (scheduler, HTTP handlers, tests) can branch on the
// category with errors.Is without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a category of error that can occur in the application.
type ErrorCode string

const (
	// ErrCodeConfig indicates a configuration-related error.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// ErrCodeValidation indicates a validation error.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

	// ErrCodeFetchTimeout indicates a download that exceeded its deadline.
	ErrCodeFetchTimeout ErrorCode = "FETCH_TIMEOUT"

	// ErrCodeFetchHTTPStatus indicates a download answered with a non-200 status.
	ErrCodeFetchHTTPStatus ErrorCode = "FETCH_HTTP_STATUS"

	// ErrCodeFetchNetwork indicates a transport failure while downloading.
	ErrCodeFetchNetwork ErrorCode = "FETCH_NETWORK"

	// ErrCodeCorruptArchive indicates an archive that is not a readable tar.gz.
	ErrCodeCorruptArchive ErrorCode = "CORRUPT_ARCHIVE"

	// ErrCodeEmptyArchive indicates an archive without any usable country.
	ErrCodeEmptyArchive ErrorCode = "EMPTY_ARCHIVE"

	// ErrCodeEmptySelection indicates a selection that resolved to no blocks.
	ErrCodeEmptySelection ErrorCode = "EMPTY_SELECTION"

	// ErrCodeUnknownZone indicates a selection naming an undefined zone.
	ErrCodeUnknownZone ErrorCode = "UNKNOWN_ZONE"

	// ErrCodeEmptyBlockList indicates a list rendered without entries. Non-fatal.
	ErrCodeEmptyBlockList ErrorCode = "EMPTY_BLOCK_LIST"
)

// Error represents a domain-specific error with an error code and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Status is the HTTP status code for ErrCodeFetchHTTPStatus, zero otherwise.
	Status int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new domain error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	ErrFetchTimeout    = New(ErrCodeFetchTimeout, "fetch timed out")
	ErrFetchHTTPStatus = New(ErrCodeFetchHTTPStatus, "unexpected HTTP status")
	ErrFetchNetwork    = New(ErrCodeFetchNetwork, "network error")
	ErrCorruptArchive  = New(ErrCodeCorruptArchive, "corrupt archive")
	ErrEmptyArchive    = New(ErrCodeEmptyArchive, "empty archive")
	ErrEmptySelection  = New(ErrCodeEmptySelection, "empty selection")
	ErrUnknownZone     = New(ErrCodeUnknownZone, "unknown zone")
	ErrEmptyBlockList  = New(ErrCodeEmptyBlockList, "empty block list")
)

// CodeOf returns the code of the first domain error in err's chain, or an
// empty code if there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCodeConfig, message, cause)
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, cause error) *Error {
	return Wrap(ErrCodeValidation, message, cause)
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCodeInternal, message, cause)
}

// NewFetchTimeoutError reports a download of url that exceeded its deadline.
func NewFetchTimeoutError(url string, cause error) *Error {
	return Wrap(ErrCodeFetchTimeout, "timed out fetching "+url, cause)
}

// NewHTTPStatusError reports a download of url answered with status.
func NewHTTPStatusError(url string, status int) *Error {
	return &Error{
		Code:    ErrCodeFetchHTTPStatus,
		Message: fmt.Sprintf("fetching %s returned HTTP %d", url, status),
		Status:  status,
	}
}

// NewNetworkError reports a transport failure while downloading url.
func NewNetworkError(url string, cause error) *Error {
	return Wrap(ErrCodeFetchNetwork, "failed to fetch "+url, cause)
}

// NewCorruptArchiveError reports an unreadable archive.
func NewCorruptArchiveError(message string, cause error) *Error {
	return Wrap(ErrCodeCorruptArchive, message, cause)
}

// NewEmptyArchiveError reports an archive without usable countries.
func NewEmptyArchiveError(message string) *Error {
	return New(ErrCodeEmptyArchive, message)
}

// NewEmptySelectionError reports a selection without any blocks.
func NewEmptySelectionError(message string) *Error {
	return New(ErrCodeEmptySelection, message)
}

// NewUnknownZoneError reports a selection naming an undefined zone.
func NewUnknownZoneError(zone string) *Error {
	return New(ErrCodeUnknownZone, fmt.Sprintf("zone %q is not defined", zone))
}

// NewEmptyBlockListError reports a list rendered without entries.
func NewEmptyBlockListError(listName string) *Error {
	return New(ErrCodeEmptyBlockList, fmt.Sprintf("list %q has no entries", listName))
}
